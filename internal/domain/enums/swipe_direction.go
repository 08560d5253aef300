package enums

import "strings"

type SwipeDirection string

const (
	SwipeNone  SwipeDirection = "none"
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
	SwipeUp    SwipeDirection = "up"
)

// Decision reports whether the direction commits a swipe.
func (d SwipeDirection) Decision() bool {
	switch d {
	case SwipeLeft, SwipeRight, SwipeUp:
		return true
	default:
		return false
	}
}

// InteractionType maps a decision onto the ledger vocabulary. A superlike is
// stored as a like; callers mark it through metadata.
func (d SwipeDirection) InteractionType() (InteractionType, bool) {
	switch d {
	case SwipeLeft:
		return InteractionDislike, true
	case SwipeRight, SwipeUp:
		return InteractionLike, true
	default:
		return "", false
	}
}

func (d SwipeDirection) IsLike() bool {
	return d == SwipeRight || d == SwipeUp
}

func ParseSwipeDirection(raw string) (SwipeDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "left", "dislike":
		return SwipeLeft, true
	case "right", "like":
		return SwipeRight, true
	case "up", "superlike", "super_like":
		return SwipeUp, true
	default:
		return SwipeNone, false
	}
}
