// Package featureflag switches parts of the frame loop off at startup.
package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is the set of flags turned on.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags set by names. Names are trimmed, upper cased
// and empty ones are skipped.
func New(names []string) FeatureFlag {
	f := make(FeatureFlag, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		f[Flag(n)] = struct{}{}
	}
	return f
}

// Parse returns the feature flags of a comma separated list such as
// "DISABLE_CULLING,DISABLE_LOD".
func Parse(s string) FeatureFlag {
	return New(strings.Split(s, ","))
}

// IsSet reports whether a flag is on. A nil FeatureFlag has no flag on.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when the flag is on.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when the flag is off.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// Names returns the flags turned on, sorted.
func (f FeatureFlag) Names() []string {
	names := make([]string, 0, len(f))
	for flag := range f {
		names = append(names, string(flag))
	}
	sort.Strings(names)
	return names
}
