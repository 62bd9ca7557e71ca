package autosave

import "time"

type Timer interface {
	Stop() bool
}

// Clock schedules the debounce callback.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
