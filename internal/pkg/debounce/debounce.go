// Package debounce delays a value until input has been quiet for a fixed
// interval. Only the last value pushed inside the interval is delivered.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The default uses time.AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

func realScheduler(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	scheduler Scheduler
}

// WithScheduler replaces the timer source. Tests use it to fire timers by hand.
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// Debouncer delivers the last pushed value to fn after delay of inactivity.
type Debouncer[T any] struct {
	delay     time.Duration
	fn        func(T)
	scheduler Scheduler

	mu      sync.Mutex
	timer   Timer
	pending bool
	value   T
	seq     uint64
	stopped bool
}

// New returns a Debouncer calling fn with the settled value.
func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	o := options{scheduler: realScheduler}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{delay: delay, fn: fn, scheduler: o.scheduler}
}

// Push records v and restarts the quiet interval.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.value = v
	d.pending = true
	d.timer = d.scheduler(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A timer that lost the race with Push or Stop must not deliver.
	if d.stopped || !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Flush delivers a pending value immediately. It reports whether anything
// was delivered.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	v := d.value
	d.pending = false
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Stop drops any pending value. Pushes after Stop are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stream debounces in. The returned channel is closed once in is closed
// (after delivering any pending value) or ctx is done.
func Stream[T any](ctx context.Context, in <-chan T, delay time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		var (
			timer   *time.Timer
			fire    <-chan time.Time
			last    T
			pending bool
		)
		stop := func() {
			if timer != nil {
				timer.Stop()
			}
		}
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					if pending {
						select {
						case out <- last:
						case <-ctx.Done():
						}
					}
					return
				}
				last, pending = v, true
				stop()
				timer = time.NewTimer(delay)
				fire = timer.C
			case <-fire:
				fire = nil
				pending = false
				select {
				case out <- last:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
