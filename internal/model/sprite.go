package model

// SpriteSize represents the available resized sprite sizes.
// Go doesn't have enums, so we use typed constants with explicit values.
type SpriteSize string

const (
	SizeXS SpriteSize = "xs" // 24px
	SizeS  SpriteSize = "s"  // 48px
	SizeM  SpriteSize = "m"  // 96px
	SizeL  SpriteSize = "l"  // 192px
	SizeXL SpriteSize = "xl" // 288px
)

// SizePixels maps each SpriteSize to its pixel dimension.
var SizePixels = map[SpriteSize]int{
	SizeXS: 24,
	SizeS:  48,
	SizeM:  96,
	SizeL:  192,
	SizeXL: 288,
}

// AllSizes is the ordered list of all sizes for iteration.
var AllSizes = []SpriteSize{SizeXS, SizeS, SizeM, SizeL, SizeXL}

// ValidSize checks if a string is a valid SpriteSize.
func ValidSize(s string) bool {
	_, ok := SizePixels[SpriteSize(s)]
	return ok
}
