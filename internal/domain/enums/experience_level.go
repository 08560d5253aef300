package enums

import "strings"

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "Beginner"
	ExperienceIntermediate ExperienceLevel = "Intermediate"
	ExperienceAdvanced     ExperienceLevel = "Advanced"
)

// ExperienceLevels is ordered from least to most experienced.
var ExperienceLevels = []ExperienceLevel{
	ExperienceBeginner,
	ExperienceIntermediate,
	ExperienceAdvanced,
}

// Index returns the ordinal position of the level or -1 when it is unknown.
func (l ExperienceLevel) Index() int {
	for i, level := range ExperienceLevels {
		if level == l {
			return i
		}
	}
	return -1
}

func (l ExperienceLevel) Valid() bool {
	return l.Index() >= 0
}

func ParseExperienceLevel(raw string) (ExperienceLevel, bool) {
	value := strings.TrimSpace(raw)
	for _, level := range ExperienceLevels {
		if strings.EqualFold(string(level), value) {
			return level, true
		}
	}
	return "", false
}
