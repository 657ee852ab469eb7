package exchangerate

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a resampling bucket: hourly passthrough, a calendar period or a
// fixed duration.
type Frequency struct {
	code string
	step time.Duration
}

var (
	Hourly    = Frequency{code: "H"}
	Daily     = Frequency{code: "D"}
	Weekly    = Frequency{code: "W"}
	Monthly   = Frequency{code: "M"}
	Quarterly = Frequency{code: "Q"}
)

// ParseFrequency accepts H, D, W, M, Q or a Go duration such as 4h.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.TrimSpace(s) {
	case "H", "h", "1h":
		return Hourly, nil
	case "D", "d":
		return Daily, nil
	case "W", "w":
		return Weekly, nil
	case "M":
		return Monthly, nil
	case "Q", "q":
		return Quarterly, nil
	}
	step, err := time.ParseDuration(s)
	if err != nil {
		return Frequency{}, fmt.Errorf("invalid frequency %q", s)
	}
	if step <= 0 || step%time.Hour != 0 {
		return Frequency{}, fmt.Errorf("frequency %q must be a positive multiple of 1h", s)
	}
	if step == time.Hour {
		return Hourly, nil
	}
	return Frequency{code: step.String(), step: step}, nil
}

func (f Frequency) String() string {
	if f.code == "" {
		return Hourly.code
	}
	return f.code
}

// IsHourly reports whether resampling is a passthrough.
func (f Frequency) IsHourly() bool {
	return f.code == "" || f.code == Hourly.code
}

// Bucket returns the start of the bucket holding t, in UTC.
func (f Frequency) Bucket(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case f.step > 0:
		return t.Truncate(f.step)
	case f.code == Daily.code:
		return day
	case f.code == Weekly.code:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case f.code == Monthly.code:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case f.code == Quarterly.code:
		month := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}
