package gesture

import (
	"strings"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
)

type Button string

const (
	ButtonDislike   Button = "dislike"
	ButtonLike      Button = "like"
	ButtonSuperlike Button = "superlike"
)

// FromButton maps the action buttons under the card straight to a decision.
func FromButton(button Button) (enums.SwipeDirection, bool) {
	switch Button(strings.ToLower(strings.TrimSpace(string(button)))) {
	case ButtonDislike:
		return enums.SwipeLeft, true
	case ButtonLike:
		return enums.SwipeRight, true
	case ButtonSuperlike:
		return enums.SwipeUp, true
	default:
		return enums.SwipeNone, false
	}
}
