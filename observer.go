package fsbox

import "time"

// Observer receives one call per completed Store operation. err is nil on
// success.
type Observer interface {
	Observe(op, scheme string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, error, time.Duration) {}
