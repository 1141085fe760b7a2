package worker

import (
	"testing"
	"time"

	"github.com/spacesaver/coordinator/internal/model"
)

func TestWithinWorkHoursNoWindowsAllowsAnyTime(t *testing.T) {
	if !WithinWorkHours(nil, time.Now()) {
		t.Fatal("expected no configured windows to mean no restriction")
	}
}

func TestWithinWorkHoursOrdinaryWindow(t *testing.T) {
	windows := []model.WorkWindow{{Start: 60, End: 120}} // 01:00-02:00
	inside := time.Date(2026, 1, 1, 1, 30, 0, 0, time.UTC)
	outside := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)

	if !WithinWorkHours(windows, inside) {
		t.Error("expected 01:30 to fall within 01:00-02:00")
	}
	if WithinWorkHours(windows, outside) {
		t.Error("expected 03:00 to fall outside 01:00-02:00")
	}
}

func TestWithinWorkHoursWraparoundWindow(t *testing.T) {
	windows := []model.WorkWindow{{Start: 22 * 60, End: 6 * 60}} // 22:00-06:00 wraps midnight
	lateNight := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !WithinWorkHours(windows, lateNight) {
		t.Error("expected 23:00 to fall within wraparound window")
	}
	if !WithinWorkHours(windows, earlyMorning) {
		t.Error("expected 03:00 to fall within wraparound window")
	}
	if WithinWorkHours(windows, midday) {
		t.Error("expected 12:00 to fall outside wraparound window")
	}
}
