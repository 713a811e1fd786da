package proto

import "time"

// Millis truncates t to the u32 millisecond clock used by timestamp fields.
// Values wrap roughly every 49 days; peers only compare nearby stamps.
func Millis(t time.Time) uint32 {
	return uint32(t.UnixMilli())
}

// DurationMillis converts d to whole milliseconds, clamped to the u32 range.
func DurationMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
