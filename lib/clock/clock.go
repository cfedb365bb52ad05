// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// DateLayout is the ISO calendar date format used for budget days.
const DateLayout = "2006-01-02"

// Clock abstracts time operations for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}

// UnixMilli returns c's current time as Unix milliseconds.
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}

// Date returns c's current UTC calendar date as YYYY-MM-DD.
func Date(c Clock) string {
	return c.Now().UTC().Format(DateLayout)
}

// FromMilli converts Unix milliseconds to a UTC time.Time.
func FromMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
