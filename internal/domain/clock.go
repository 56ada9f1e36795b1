package domain

import "time"

// Clock supplies the timestamps stamped on headers and payment attempts.
type Clock func() time.Time

// SystemClock returns UTC wall time truncated to milliseconds, the finest
// precision every storage backend keeps. Payment attempts are matched on
// their creation time, so a timestamp must survive a round trip unchanged.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
