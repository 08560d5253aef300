package gesture

import (
	"math"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
)

const (
	DefaultPreviewPX = 80.0
	DefaultCommitPX  = 100.0
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseTracking Phase = "tracking"
)

type Thresholds struct {
	PreviewPX float64
	CommitPX  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{PreviewPX: DefaultPreviewPX, CommitPX: DefaultCommitPX}
}

func (t Thresholds) normalized() Thresholds {
	if t.PreviewPX <= 0 {
		t.PreviewPX = DefaultPreviewPX
	}
	if t.CommitPX <= 0 {
		t.CommitPX = DefaultCommitPX
	}
	return t
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outcome is the result of releasing a gesture. A discarded gesture has
// Direction none and SnapBack set so the card animates to rest.
type Outcome struct {
	Direction enums.SwipeDirection
	Committed bool
	SnapBack  bool
	DX        float64
	DY        float64
}

// Tracker follows a single drag. It keeps no memory between gestures.
// Screen coordinates: y grows downwards, so an upward drag has negative dy.
type Tracker struct {
	thresholds Thresholds
	phase      Phase
	start      Point
	dx         float64
	dy         float64
}

func NewTracker(thresholds Thresholds) *Tracker {
	return &Tracker{thresholds: thresholds.normalized(), phase: PhaseIdle}
}

func (t *Tracker) Phase() Phase {
	return t.phase
}

func (t *Tracker) Begin(start Point) {
	t.phase = PhaseTracking
	t.start = start
	t.dx = 0
	t.dy = 0
}

// Move records the displacement from the start point and returns the
// advisory direction for live feedback.
func (t *Tracker) Move(dx, dy float64) enums.SwipeDirection {
	if t.phase != PhaseTracking {
		return enums.SwipeNone
	}
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return t.Advisory()
	}
	t.dx = dx
	t.dy = dy
	return t.Advisory()
}

func (t *Tracker) Advisory() enums.SwipeDirection {
	if t.phase != PhaseTracking {
		return enums.SwipeNone
	}
	return advisory(t.dx, t.dy, t.thresholds.PreviewPX)
}

func (t *Tracker) Release() Outcome {
	if t.phase != PhaseTracking {
		return Outcome{Direction: enums.SwipeNone, SnapBack: true}
	}
	out := decide(t.dx, t.dy, t.thresholds.CommitPX)
	t.reset()
	return out
}

func (t *Tracker) Cancel() {
	t.reset()
}

func (t *Tracker) reset() {
	t.phase = PhaseIdle
	t.start = Point{}
	t.dx = 0
	t.dy = 0
}

// Classify replays a full trajectory of absolute points through a fresh
// tracker. The first point is the start, the last one is where the pointer
// was released.
func Classify(trajectory []Point, thresholds Thresholds) Outcome {
	if len(trajectory) == 0 {
		return Outcome{Direction: enums.SwipeNone, SnapBack: true}
	}
	tracker := NewTracker(thresholds)
	start := trajectory[0]
	tracker.Begin(start)
	for _, p := range trajectory[1:] {
		tracker.Move(p.X-start.X, p.Y-start.Y)
	}
	return tracker.Release()
}

// Preview returns the advisory direction for the latest point of a trajectory.
func Preview(trajectory []Point, thresholds Thresholds) enums.SwipeDirection {
	if len(trajectory) < 2 {
		return enums.SwipeNone
	}
	start := trajectory[0]
	last := trajectory[len(trajectory)-1]
	return advisory(last.X-start.X, last.Y-start.Y, thresholds.normalized().PreviewPX)
}

func advisory(dx, dy, preview float64) enums.SwipeDirection {
	absX := math.Abs(dx)
	absY := math.Abs(dy)

	switch {
	case absX > preview && absX >= absY:
		return horizontal(dx)
	case -dy > preview:
		return enums.SwipeUp
	case absX > preview:
		return horizontal(dx)
	default:
		return enums.SwipeNone
	}
}

func decide(dx, dy, commit float64) Outcome {
	absX := math.Abs(dx)
	absY := math.Abs(dy)
	out := Outcome{DX: dx, DY: dy}

	switch {
	case absX > commit && absX > absY:
		out.Direction = horizontal(dx)
		out.Committed = true
	case -dy > commit && absY > absX:
		out.Direction = enums.SwipeUp
		out.Committed = true
	default:
		out.Direction = enums.SwipeNone
		out.SnapBack = true
	}
	return out
}

func horizontal(dx float64) enums.SwipeDirection {
	if dx < 0 {
		return enums.SwipeLeft
	}
	return enums.SwipeRight
}
