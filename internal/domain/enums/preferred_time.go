package enums

import "strings"

type PreferredTime string

const (
	PreferredTimeMorning      PreferredTime = "Morning"
	PreferredTimeAfternoon    PreferredTime = "Afternoon"
	PreferredTimeEvening      PreferredTime = "Evening"
	PreferredTimeLateNight    PreferredTime = "Late Night"
	PreferredTimeWeekendsOnly PreferredTime = "Weekends Only"
	PreferredTimeFlexible     PreferredTime = "Flexible"
)

type ScheduleBucket string

const (
	ScheduleBucketNone    ScheduleBucket = ""
	ScheduleBucketDay     ScheduleBucket = "day"
	ScheduleBucketNight   ScheduleBucket = "night"
	ScheduleBucketWeekend ScheduleBucket = "weekend"
)

var preferredTimes = []PreferredTime{
	PreferredTimeMorning,
	PreferredTimeAfternoon,
	PreferredTimeEvening,
	PreferredTimeLateNight,
	PreferredTimeWeekendsOnly,
	PreferredTimeFlexible,
}

// Bucket groups a preferred time into a coarse period. Flexible has no bucket.
func (p PreferredTime) Bucket() ScheduleBucket {
	switch p {
	case PreferredTimeMorning, PreferredTimeAfternoon:
		return ScheduleBucketDay
	case PreferredTimeEvening, PreferredTimeLateNight:
		return ScheduleBucketNight
	case PreferredTimeWeekendsOnly:
		return ScheduleBucketWeekend
	default:
		return ScheduleBucketNone
	}
}

func (p PreferredTime) Valid() bool {
	for _, value := range preferredTimes {
		if value == p {
			return true
		}
	}
	return false
}

func ParsePreferredTime(raw string) (PreferredTime, bool) {
	value := strings.Join(strings.Fields(raw), " ")
	for _, candidate := range preferredTimes {
		if strings.EqualFold(string(candidate), value) {
			return candidate, true
		}
	}
	return "", false
}
