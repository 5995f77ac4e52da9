package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot recurrence patterns
const (
	SlotPatternNone     = "none"
	SlotPatternWeekends = "weekends"
	SlotPatternWeekdays = "weekdays"
	SlotPatternEveryday = "everyday"
	SlotPatternCustom   = "custom"
)

// Viewing request statuses
const (
	ViewingStatusRequested = "requested"
	ViewingStatusConfirmed = "confirmed"
	ViewingStatusRejected  = "rejected"
	ViewingStatusCancelled = "cancelled"
)

// Cancellation actors
const (
	CancelledBySeeker   = "seeker"
	CancelledByLandlord = "landlord"
	CancelledBySystem   = "system"
)

// ViewingSlot is a landlord-defined bookable window for one listing.
// EndsAt is nil for open-ended recurring slots. TimeFrom/TimeTo ("15:04")
// narrow the daily window; when unset the clock time of StartsAt/EndsAt
// applies.
type ViewingSlot struct {
	ID         uuid.UUID  `json:"id"`
	ListingID  uuid.UUID  `json:"listing_id"`
	StartsAt   time.Time  `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	Capacity   int        `json:"capacity"`
	IsActive   bool       `json:"is_active"`
	Pattern    string     `json:"pattern"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"` // 0 = Sunday, for custom
	TimeFrom   *string    `json:"time_from,omitempty"`
	TimeTo     *string    `json:"time_to,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ViewingRequest struct {
	ID          uuid.UUID `json:"id"`
	SlotID      uuid.UUID `json:"slot_id"`
	SeekerID    uuid.UUID `json:"seeker_id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Message     *string   `json:"message,omitempty"`
	CancelledBy *string   `json:"cancelled_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActiveRequest reports whether the request occupies slot capacity.
func (r *ViewingRequest) IsActiveRequest() bool {
	return r.Status == ViewingStatusRequested || r.Status == ViewingStatusConfirmed
}

// ValidateOccurrence checks that at is a legal occurrence of the slot as of
// now. The returned error names the violated constraint.
func (s *ViewingSlot) ValidateOccurrence(at, now time.Time) error {
	if at.Before(now) {
		return fmt.Errorf("time %s is in the past", at.Format("2006-01-02 15:04"))
	}

	day := dateOf(at)
	startDay := dateOf(s.StartsAt)

	if day.Before(startDay) {
		return fmt.Errorf("date %s is before the slot start date %s", day.Format("2006-01-02"), startDay.Format("2006-01-02"))
	}
	if s.EndsAt != nil {
		endDay := dateOf(*s.EndsAt)
		if day.After(endDay) {
			return fmt.Errorf("date %s is after the slot end date %s", day.Format("2006-01-02"), endDay.Format("2006-01-02"))
		}
	}

	switch s.Pattern {
	case SlotPatternNone, SlotPatternEveryday, "":
		// any day within the range
	case SlotPatternWeekends:
		if wd := at.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return fmt.Errorf("%s is not a weekend day", at.Weekday())
		}
	case SlotPatternWeekdays:
		if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return fmt.Errorf("%s is not a weekday", at.Weekday())
		}
	case SlotPatternCustom:
		if !containsDay(s.DaysOfWeek, int(at.Weekday())) {
			return fmt.Errorf("%s is not among the slot's days of week", at.Weekday())
		}
	default:
		return fmt.Errorf("unknown recurrence pattern %q", s.Pattern)
	}

	from, to, err := s.dailyWindow()
	if err != nil {
		return err
	}
	minute := at.Hour()*60 + at.Minute()
	if minute < from || minute > to {
		return fmt.Errorf("time %02d:%02d is outside the %02d:%02d-%02d:%02d window",
			at.Hour(), at.Minute(), from/60, from%60, to/60, to%60)
	}
	return nil
}

// dailyWindow returns the legal time-of-day window in minutes since midnight.
func (s *ViewingSlot) dailyWindow() (int, int, error) {
	if s.TimeFrom != nil && s.TimeTo != nil {
		from, err := parseClock(*s.TimeFrom)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid time_from %q", *s.TimeFrom)
		}
		to, err := parseClock(*s.TimeTo)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid time_to %q", *s.TimeTo)
		}
		return from, to, nil
	}
	from := s.StartsAt.Hour()*60 + s.StartsAt.Minute()
	to := 24*60 - 1
	if s.EndsAt != nil {
		to = s.EndsAt.Hour()*60 + s.EndsAt.Minute()
	}
	return from, to, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func containsDay(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}
