// Package colors provides the color helpers used to tint tiles while
// debugging quadtree levels.
package colors

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ErrTypeBadHex is the error type returned when a color string is not a
	// 3 or 6 digit hexadecimal color.
	ErrTypeBadHex = "bad_hex"

	hexDigits = "0123456789ABCDEF"
)

var hexColor = regexp.MustCompile(`^#([A-Fa-f0-9]{3}){1,2}$`)

// HexToRGBA converts a "#rgb" or "#rrggbb" string to normalized channels.
// Channels are divided by 256 and rounded to 5 decimals.
func HexToRGBA(hex string) ([3]float64, error) {
	if !hexColor.MatchString(hex) {
		return [3]float64{}, errors.New("bad hex").
			WithType(ErrTypeBadHex).
			WithTag("hex", hex)
	}

	digits := hex[1:]
	if len(digits) == 3 {
		var b strings.Builder
		for _, c := range digits {
			b.WriteRune(c)
			b.WriteRune(c)
		}
		digits = b.String()
	}

	c, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return [3]float64{}, errors.New("bad hex").
			WithType(ErrTypeBadHex).
			WithTag("hex", hex).
			Wrap(err)
	}

	return [3]float64{
		mgl64.Round(float64((c>>16)&255)/256, 5),
		mgl64.Round(float64((c>>8)&255)/256, 5),
		mgl64.Round(float64(c&255)/256, 5),
	}, nil
}

// RandomHexColor returns a random "#RRGGBB" color.
func RandomHexColor(r *rand.Rand) string {
	var b strings.Builder
	b.WriteByte('#')
	for i := 0; i < 6; i++ {
		b.WriteByte(hexDigits[r.Intn(16)])
	}
	return b.String()
}

// RandomRGB returns random 0-255 channels, never pure white.
func RandomRGB(r *rand.Rand) [3]uint8 {
	for {
		c := [3]uint8{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256))}
		if c != [3]uint8{255, 255, 255} {
			return c
		}
	}
}

// LevelColors returns one random color per quadtree level.
func LevelColors(levels int, r *rand.Rand) [][3]float64 {
	colors := make([][3]float64, 0, levels)
	for i := 0; i < levels; i++ {
		// RandomHexColor always produces a valid color.
		c, _ := HexToRGBA(RandomHexColor(r))
		colors = append(colors, c)
	}
	return colors
}
