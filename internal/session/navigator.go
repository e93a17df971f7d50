package session

import "time"

// NavigateOptions controls how a redirect is performed.
type NavigateOptions struct {
	// Replace swaps the current history entry so Back cannot return to it.
	Replace bool
	// Hard discards in-memory state and reloads it from storage, the way a
	// full page load would.
	Hard bool
}

// Navigator performs redirects inside the console.
type Navigator interface {
	GoTo(path string, opts NavigateOptions)
	Current() string
}

// HardRedirector is the fallback used when no Navigator is available.
type HardRedirector func(path string)

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func redirect(nav Navigator, hard HardRedirector, path string, opts NavigateOptions) {
	if nav != nil {
		nav.GoTo(path, opts)
		return
	}
	if hard != nil {
		hard(path)
	}
}
