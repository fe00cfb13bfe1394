// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wallpaper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a local wall-clock time in minutes since midnight.
type ClockTime int

// minutesPerDay bounds ClockTime.
const minutesPerDay = 24 * 60

// Clock returns the ClockTime for hour:minute.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockOf truncates t to its local minute of the day.
func ClockOf(t time.Time) ClockTime {
	return Clock(t.Hour(), t.Minute())
}

// ParseClockTime accepts "H", "HH" or "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 || len(minutePart) != 2 {
			return 0, fmt.Errorf("invalid minute in %q", s)
		}
	}
	return Clock(hour, minute), nil
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// String formats c as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// DayRange is the span of the day during which the day image is shown.
// Both ends are inclusive. When Start is after End the range wraps past
// midnight.
type DayRange struct {
	Start ClockTime
	End   ClockTime
}

// DefaultDayRange is used when a time rule does not set day_range.
var DefaultDayRange = DayRange{Start: Clock(8, 0), End: Clock(19, 0)}

// ParseDayRange parses "START-END", for example "8-19" or "07:30-20:15".
func ParseDayRange(s string) (DayRange, error) {
	startPart, endPart, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return DayRange{}, fmt.Errorf("day range %q must look like START-END", s)
	}
	start, err := ParseClockTime(startPart)
	if err != nil {
		return DayRange{}, fmt.Errorf("day range %q: %w", s, err)
	}
	end, err := ParseClockTime(endPart)
	if err != nil {
		return DayRange{}, fmt.Errorf("day range %q: %w", s, err)
	}
	r := DayRange{Start: start, End: end}
	return r, r.Validate()
}

// Validate rejects empty ranges.
func (r DayRange) Validate() error {
	if r.Start < 0 || r.Start >= minutesPerDay || r.End < 0 || r.End >= minutesPerDay {
		return fmt.Errorf("day range %s is out of bounds", r)
	}
	if r.Start == r.End {
		return fmt.Errorf("day range %s has equal start and end", r)
	}
	return nil
}

// Wraps reports whether the range spans midnight.
func (r DayRange) Wraps() bool { return r.Start > r.End }

// IsDay reports whether t falls inside the range, at minute granularity.
func (r DayRange) IsDay(t time.Time) bool {
	m := ClockOf(t)
	if r.Wraps() {
		return m >= r.Start || m <= r.End
	}
	return m >= r.Start && m <= r.End
}

// String formats the range as HH:MM-HH:MM.
func (r DayRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// MarshalText implements encoding.TextMarshaler.
func (r DayRange) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *DayRange) UnmarshalText(text []byte) error {
	parsed, err := ParseDayRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
