package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Weekday identifies a teaching day; only Monday through Friday are schedulable.
type Weekday int

// Teaching days.
const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Operating window of the weekly grid, in whole hours.
const (
	DayStartHour = 8
	DayEndHour   = 20
	// WeeklyContactHours is the total duration every SlotCombo must cover.
	WeeklyContactHours = 3
)

// TeachingDays lists the schedulable days in grid order.
var TeachingDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayNames = map[Weekday]string{
	Monday:    "MON",
	Tuesday:   "TUE",
	Wednesday: "WED",
	Thursday:  "THU",
	Friday:    "FRI",
}

// String returns the three-letter day code.
func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DAY(%d)", int(d))
}

// Valid reports whether the day is on the teaching grid.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Friday
}

// TimeSlot is a single weekly meeting block at hour granularity.
type TimeSlot struct {
	Day   Weekday `json:"day"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Duration returns the block length in hours.
func (t TimeSlot) Duration() int {
	return t.End - t.Start
}

// Valid reports whether the block sits inside the operating window.
func (t TimeSlot) Valid() bool {
	return t.Day.Valid() && t.Start >= DayStartHour && t.End <= DayEndHour && t.Start < t.End
}

// Overlaps reports whether two blocks share at least one hour.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	return t.Day == other.Day && t.Start < other.End && other.Start < t.End
}

// Cells expands the block into its one-hour grid cells.
func (t TimeSlot) Cells() []SlotCell {
	cells := make([]SlotCell, 0, t.Duration())
	for hour := t.Start; hour < t.End; hour++ {
		cells = append(cells, SlotCell{Day: t.Day, Hour: hour})
	}
	return cells
}

// String renders the block as "MON 08-11".
func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %02d-%02d", t.Day, t.Start, t.End)
}

// SlotCell is one hour of one day on the weekly grid.
type SlotCell struct {
	Day  Weekday
	Hour int
}

// SlotCombo is the weekly meeting pattern of a course-term.
type SlotCombo []TimeSlot

// NewSlotCombo copies the slots into canonical (day, start) order.
func NewSlotCombo(slots ...TimeSlot) SlotCombo {
	combo := make(SlotCombo, len(slots))
	copy(combo, slots)
	sort.Slice(combo, func(i, j int) bool {
		if combo[i].Day == combo[j].Day {
			return combo[i].Start < combo[j].Start
		}
		return combo[i].Day < combo[j].Day
	})
	return combo
}

// Hours returns the summed duration.
func (c SlotCombo) Hours() int {
	total := 0
	for _, slot := range c {
		total += slot.Duration()
	}
	return total
}

// Valid reports whether the combo is a legal weekly pattern.
func (c SlotCombo) Valid() bool {
	if len(c) == 0 || len(c) > 3 || c.Hours() != WeeklyContactHours {
		return false
	}
	for i, slot := range c {
		if !slot.Valid() {
			return false
		}
		for _, other := range c[i+1:] {
			if slot.Overlaps(other) {
				return false
			}
		}
	}
	return true
}

// Cells expands every block into grid cells.
func (c SlotCombo) Cells() []SlotCell {
	cells := make([]SlotCell, 0, c.Hours())
	for _, slot := range c {
		cells = append(cells, slot.Cells()...)
	}
	return cells
}

// Overlaps reports whether any block of c shares time with any block of other.
func (c SlotCombo) Overlaps(other SlotCombo) bool {
	for _, a := range c {
		for _, b := range other {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Equal compares combos slot by slot.
func (c SlotCombo) Equal(other SlotCombo) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical identifier usable as a map key.
func (c SlotCombo) Key() string {
	parts := make([]string, len(c))
	for i, slot := range c {
		parts[i] = slot.String()
	}
	return strings.Join(parts, ",")
}

// String is an alias for Key.
func (c SlotCombo) String() string {
	return c.Key()
}

// Value stores the combo as JSON; an empty combo is stored as NULL.
func (c SlotCombo) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal([]TimeSlot(c))
	if err != nil {
		return nil, fmt.Errorf("marshal slot combo: %w", err)
	}
	return payload, nil
}

// Scan reads a JSON encoded combo.
func (c *SlotCombo) Scan(src interface{}) error {
	var raw []byte
	switch value := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		raw = value
	case string:
		raw = []byte(value)
	default:
		return fmt.Errorf("unsupported slot combo source %T", src)
	}
	if len(raw) == 0 {
		*c = nil
		return nil
	}
	var slots []TimeSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return fmt.Errorf("unmarshal slot combo: %w", err)
	}
	*c = NewSlotCombo(slots...)
	return nil
}
