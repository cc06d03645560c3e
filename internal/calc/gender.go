package calc

import "github.com/fleveque/pokemmo-companion/internal/model"

// genderThresholds maps a species gender rate (eighths female) to the
// personality byte at and above which the Pokemon is male.
var genderThresholds = map[int]uint8{
	1: 31,
	2: 63,
	4: 127,
	6: 191,
	7: 225,
}

const defaultGenderThreshold uint8 = 127

// Gender derives gender from the species gender rate and the personality
// value. -1 is genderless, 0 always male, 8 always female.
func Gender(ratio int, personality uint32) model.Gender {
	switch ratio {
	case -1:
		return model.GenderGenderless
	case 0:
		return model.GenderMale
	case 8:
		return model.GenderFemale
	}
	threshold, ok := genderThresholds[ratio]
	if !ok {
		threshold = defaultGenderThreshold
	}
	if uint8(personality&0xff) >= threshold {
		return model.GenderMale
	}
	return model.GenderFemale
}
