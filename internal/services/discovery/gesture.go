package discovery

import (
	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/services/gesture"
)

type GestureResult struct {
	Advisory enums.SwipeDirection
	Outcome  gesture.Outcome
}

// OnGesture classifies a finished drag. It never commits; callers pass a
// committed direction to Commit.
func (s *Session) OnGesture(trajectory []gesture.Point) GestureResult {
	return GestureResult{
		Advisory: gesture.Preview(trajectory, s.cfg.Gesture),
		Outcome:  gesture.Classify(trajectory, s.cfg.Gesture),
	}
}
