package featureflag

type Flag string

const (
	FlagDisableCulling  Flag = "DISABLE_CULLING"
	FlagDisableLighting Flag = "DISABLE_LIGHTING"
	FlagDisableLOD      Flag = "DISABLE_LOD"

	// Tints each quadtree level with a random color.
	FlagDebugLevelColors Flag = "DEBUG_LEVEL_COLORS"
)
