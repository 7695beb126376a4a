package cotask

import (
	"log/slog"
	"os"
	"sync"
)

type options struct {
	policy    Policy
	lock      sync.Locker
	onFailure func(error)
	transform func(Target) (Awaiter[any], bool)
	driver    Driver
	logger    *slog.Logger
}

// Option configures a frame at construction.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{policy: Lazy}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithPolicy sets the initial and final suspend policy of a frame
// created by New.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLock makes the frame hold l from its initial suspend point until
// its final one. The constructor blocks until l is acquired, so frames
// sharing a lock run their bodies one after another. A frame destroyed
// before finishing releases the lock in Destroy.
func WithLock(l sync.Locker) Option {
	return func(o *options) { o.lock = l }
}

// WithFailureHandler installs fn to be called with the failure of a
// frame whose body returned an error or panicked. The failure is still
// stored in the frame and returned to the resumer.
func WithFailureHandler(fn func(error)) Option {
	return func(o *options) { o.onFailure = fn }
}

// WithTransform installs a mapping from await targets to suspension
// points, consulted by Co.Await before the default dispatch. Returning
// false falls through to the default.
func WithTransform(fn func(Target) (Awaiter[any], bool)) Option {
	return func(o *options) { o.transform = fn }
}

// WithDriver binds the frame to d at construction, before any body
// code runs, and spawns it on d once the initial suspend policy has
// been applied.
func WithDriver(d Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithLogger sets the logger used for frame diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Terminate is a failure handler that logs the failure and exits the
// process.
func Terminate(err error) {
	slog.Error("cotask: unhandled frame failure", "error", DebugString(err))
	os.Exit(1)
}
