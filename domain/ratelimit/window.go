// Package ratelimit throttles repeated failed logins with fixed windows.
// Functions are pure: callers persist the returned state.
package ratelimit

import "time"

// WindowState is the failure count of one key in its current window.
type WindowState struct {
	Failures  int
	WindowEnd time.Time
}

// Config bounds failures per window. A zero Limit disables throttling.
type Config struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// current returns state, reset when its window is over.
func current(state WindowState, now time.Time) WindowState {
	if state.WindowEnd.IsZero() || !now.Before(state.WindowEnd) {
		return WindowState{}
	}
	return state
}

// Check reports whether another attempt may proceed. It does not count the
// attempt; call Fail when it turns out wrong.
func Check(state WindowState, cfg Config, now time.Time) Decision {
	if cfg.Limit <= 0 {
		return Decision{Allowed: true}
	}
	state = current(state, now)
	if state.Failures < cfg.Limit {
		return Decision{Allowed: true, Remaining: cfg.Limit - state.Failures}
	}
	return Decision{RetryAfter: state.WindowEnd.Sub(now)}
}

// Fail records a failed attempt. The window starts at the first failure.
func Fail(state WindowState, cfg Config, now time.Time) WindowState {
	state = current(state, now)
	if state.WindowEnd.IsZero() {
		state.WindowEnd = now.Add(cfg.Window)
	}
	state.Failures++
	return state
}

// Expired reports whether state can be forgotten at now.
func Expired(state WindowState, now time.Time) bool {
	return current(state, now) == WindowState{}
}
