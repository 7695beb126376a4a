package cotask

// State is the progress of a frame.
type State uint8

const (
	// StateCreated is a frame whose body has not started.
	StateCreated State = iota
	// StateSuspended is a frame parked at a suspension point.
	StateSuspended
	// StateRunning is a frame whose body is executing.
	StateRunning
	// StateCompleted is a frame whose body returned. Computations
	// without a value use T = struct{}.
	StateCompleted
	// StateFailed is a frame whose body returned an error or panicked.
	StateFailed
	// StateDestroyed is a released frame.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Finished reports whether the body has ended, normally or not.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateFailed
}

// Status reports where a Step left the frame.
type Status uint8

const (
	// StatusYielded means the frame suspended without waiting on
	// anything and may be resumed right away.
	StatusYielded Status = iota
	// StatusPending means the frame waits for a suspension point to
	// wake it.
	StatusPending
	// StatusDone means the body finished.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusYielded:
		return "yielded"
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	}
	return "unknown"
}

// InitialSuspend decides whether a frame runs before its constructor
// returns.
type InitialSuspend uint8

const (
	// StartSuspended frames run no body code until the first resume.
	StartSuspended InitialSuspend = iota
	// StartImmediately frames run up to their first suspension point
	// inside the constructor.
	StartImmediately
)

// FinalSuspend decides what happens to a frame when its body ends.
type FinalSuspend uint8

const (
	// RetainOnFinish frames stay suspended at completion; the owner
	// reads the result and calls Destroy.
	RetainOnFinish FinalSuspend = iota
	// ReleaseOnFinish frames destroy themselves at completion; a
	// later Destroy by the owner returns ErrDestroyed.
	ReleaseOnFinish
)

// Policy pairs the initial and final suspend behavior of a frame. It
// is fixed when the frame is created.
type Policy struct {
	Initial InitialSuspend
	Final   FinalSuspend
}

var (
	// Lazy frames start suspended and are retained on finish. This is
	// the policy of New by default and of every generator.
	Lazy = Policy{Initial: StartSuspended, Final: RetainOnFinish}

	// Eager frames start immediately and are retained on finish.
	Eager = Policy{Initial: StartImmediately, Final: RetainOnFinish}

	// Detached frames start immediately and release themselves on
	// finish. Go uses it for fire-and-forget tasks.
	Detached = Policy{Initial: StartImmediately, Final: ReleaseOnFinish}
)
