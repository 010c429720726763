package transcribe

import "time"

// Window is a half-open time range [Start, End) of the source audio.
type Window struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

// Windows partitions [0, total) into consecutive windows of size, the last one
// truncated to total.
func Windows(total, size time.Duration) []Window {
	if total <= 0 || size <= 0 {
		return nil
	}
	var windows []Window
	for start := time.Duration(0); start < total; start += size {
		windows = append(windows, Window{
			Index: len(windows),
			Start: start,
			End:   min(start+size, total),
		})
	}
	return windows
}
