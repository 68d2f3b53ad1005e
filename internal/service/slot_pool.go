package service

import "github.com/noah-isme/course-intake-api/internal/models"

// minSameDayGap is the minimum distance between start hours of two blocks
// placed on the same day.
const minSameDayGap = 2

// SlotPattern names a family of meeting patterns in pool order.
type SlotPattern int

const (
	PatternSingleBlock SlotPattern = iota + 1
	PatternSplitSameDay
	PatternSplitTwoDays
	PatternHourlyOneDay
	PatternHourlyTwoDays
	PatternHourlyThreeDays
)

// BuildSlotPool enumerates every legal weekly meeting pattern in a fixed order:
// pattern family first, then day, then start hour.
func BuildSlotPool() []models.SlotCombo {
	var pool []models.SlotCombo
	for _, pattern := range []SlotPattern{
		PatternSingleBlock,
		PatternSplitSameDay,
		PatternSplitTwoDays,
		PatternHourlyOneDay,
		PatternHourlyTwoDays,
		PatternHourlyThreeDays,
	} {
		pool = append(pool, combosFor(pattern)...)
	}
	return pool
}

func combosFor(pattern SlotPattern) []models.SlotCombo {
	days := models.TeachingDays
	var out []models.SlotCombo
	switch pattern {
	case PatternSingleBlock:
		for _, day := range days {
			for _, start := range blockStarts(3) {
				out = append(out, models.NewSlotCombo(block(day, start, 3)))
			}
		}
	case PatternSplitSameDay:
		for _, day := range days {
			for _, a := range blockStarts(2) {
				for _, b := range blockStarts(1) {
					long, short := block(day, a, 2), block(day, b, 1)
					if gap(a, b) < minSameDayGap || long.Overlaps(short) {
						continue
					}
					out = append(out, models.NewSlotCombo(long, short))
				}
			}
		}
	case PatternSplitTwoDays:
		for _, d1 := range days {
			for _, d2 := range days {
				if d1 == d2 {
					continue
				}
				for _, a := range blockStarts(2) {
					for _, b := range blockStarts(1) {
						out = append(out, models.NewSlotCombo(block(d1, a, 2), block(d2, b, 1)))
					}
				}
			}
		}
	case PatternHourlyOneDay:
		hours := blockStarts(1)
		for _, day := range days {
			for _, a := range hours {
				for _, b := range hours {
					for _, c := range hours {
						if b-a < minSameDayGap || c-b < minSameDayGap {
							continue
						}
						out = append(out, models.NewSlotCombo(block(day, a, 1), block(day, b, 1), block(day, c, 1)))
					}
				}
			}
		}
	case PatternHourlyTwoDays:
		hours := blockStarts(1)
		for _, d1 := range days {
			for _, d2 := range days {
				if d1 == d2 {
					continue
				}
				for _, a := range hours {
					for _, b := range hours {
						if b-a < minSameDayGap {
							continue
						}
						for _, c := range hours {
							out = append(out, models.NewSlotCombo(block(d1, a, 1), block(d1, b, 1), block(d2, c, 1)))
						}
					}
				}
			}
		}
	case PatternHourlyThreeDays:
		hours := blockStarts(1)
		for i, d1 := range days {
			for j := i + 1; j < len(days); j++ {
				for k := j + 1; k < len(days); k++ {
					d2, d3 := days[j], days[k]
					for _, a := range hours {
						for _, b := range hours {
							for _, c := range hours {
								out = append(out, models.NewSlotCombo(block(d1, a, 1), block(d2, b, 1), block(d3, c, 1)))
							}
						}
					}
				}
			}
		}
	}
	return out
}

// blockStarts lists start hours for a block of the given length inside the operating window.
func blockStarts(length int) []int {
	starts := make([]int, 0, models.DayEndHour-models.DayStartHour)
	for start := models.DayStartHour; start+length <= models.DayEndHour; start++ {
		starts = append(starts, start)
	}
	return starts
}

func block(day models.Weekday, start, length int) models.TimeSlot {
	return models.TimeSlot{Day: day, Start: start, End: start + length}
}

func gap(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
