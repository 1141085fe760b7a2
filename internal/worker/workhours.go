package worker

import (
	"time"

	"github.com/spacesaver/coordinator/internal/model"
)

// WithinWorkHours reports whether now falls inside any of windows (minute-of-day [Start, End)),
// or true if windows is empty (no restriction configured). A window whose End is less than or
// equal to its Start is treated as wrapping past midnight, grounded on worker.py's
// within_work_hours.
func WithinWorkHours(windows []model.WorkWindow, now time.Time) bool {
	if len(windows) == 0 {
		return true
	}
	minuteOfDay := now.Hour()*60 + now.Minute()
	for _, w := range windows {
		if w.End > w.Start {
			if minuteOfDay >= w.Start && minuteOfDay < w.End {
				return true
			}
		} else {
			// Wraps past midnight: [Start, 1440) U [0, End).
			if minuteOfDay >= w.Start || minuteOfDay < w.End {
				return true
			}
		}
	}
	return false
}
