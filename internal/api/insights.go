package api

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/models"
)

// AttendanceProjection reports where a course stands against the attendance
// threshold: how many consecutive attended lectures it takes to climb back
// above it, and how many can still be skipped without dropping below.
type AttendanceProjection struct {
	CourseCode        string  `json:"courseCode"`
	CourseName        string  `json:"courseName"`
	CurrentPercentage float64 `json:"currentPercentage"`
	TotalLectures     int     `json:"totalLectures"`
	TotalPresent      int     `json:"totalPresent"`
	ClassesNeeded     int     `json:"classesNeededForThreshold"`
	CanReachThreshold bool    `json:"canReachThreshold"`
	ClassesCanSkip    int     `json:"classesCanSkip"`
}

// projectAttendance computes the projection for each course. A count of -1
// means unbounded: the threshold can never be reached, or any number of
// lectures can be skipped.
func projectAttendance(records []*models.Attendance, threshold float64) []AttendanceProjection {
	fraction := threshold / 100

	projections := make([]AttendanceProjection, 0, len(records))
	for _, r := range records {
		pct := 0.0
		if r.Percentage != nil {
			pct = *r.Percentage
		}

		p := AttendanceProjection{
			CourseCode:        r.CourseCode,
			CourseName:        r.CourseName,
			CurrentPercentage: pct,
			TotalLectures:     r.TotalLectures,
			TotalPresent:      r.TotalPresent,
			CanReachThreshold: true,
		}

		if pct < threshold {
			if fraction >= 1 {
				// A 100% threshold is out of reach once a lecture was missed
				p.CanReachThreshold = r.TotalPresent >= r.TotalLectures
				if !p.CanReachThreshold {
					p.ClassesNeeded = -1
				}
			} else {
				// Smallest x with (present + x) / (total + x) >= fraction
				needed := int(math.Ceil(
					(fraction*float64(r.TotalLectures) - float64(r.TotalPresent)) / (1 - fraction)))
				if needed < 0 {
					needed = 0
				}
				p.ClassesNeeded = needed
			}
		}

		if fraction > 0 {
			// Largest x with present / (total + x) >= fraction
			skip := int(math.Floor(float64(r.TotalPresent)/fraction - float64(r.TotalLectures)))
			if skip < 0 {
				skip = 0
			}
			p.ClassesCanSkip = skip
		} else {
			p.ClassesCanSkip = -1
		}

		projections = append(projections, p)
	}

	return projections
}

// College day boundaries and the smallest gap worth reporting
const (
	collegeDayStart = "08:30"
	collegeDayEnd   = "16:20"
	minBreakMinutes = 11
)

// CommonBreak is one gap both timetables leave free
type CommonBreak struct {
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"durationMinutes"`
}

// DayBreaks groups the common breaks of one weekday
type DayBreaks struct {
	DayOfWeek int           `json:"dayOfWeek"`
	DayName   string        `json:"dayName"`
	Breaks    []CommonBreak `json:"breaks"`
}

// timeInterval is a busy slot in minutes from midnight
type timeInterval struct {
	start int
	end   int
}

// toMinutes parses "HH:mm" into minutes from midnight
func toMinutes(clock string) int {
	parts := strings.SplitN(clock, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m := 0
	if len(parts) > 1 {
		m, _ = strconv.Atoi(parts[1])
	}
	return h*60 + m
}

// toClock formats minutes from midnight as "HH:mm"
func toClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// mergeIntervals collapses overlapping or touching busy slots
func mergeIntervals(intervals []timeInterval) []timeInterval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]timeInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := []timeInterval{sorted[0]}
	for _, curr := range sorted[1:] {
		last := &merged[len(merged)-1]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
		} else {
			merged = append(merged, curr)
		}
	}

	return merged
}

// freeSlots returns the gaps between merged busy intervals inside the
// college day. Gaps shorter than minMinutes are dropped.
func freeSlots(busy []timeInterval, dayStart, dayEnd, minMinutes int) []CommonBreak {
	breaks := []CommonBreak{}
	cursor := dayStart

	for _, interval := range busy {
		start := interval.start
		if start < dayStart {
			start = dayStart
		}
		end := interval.end
		if end > dayEnd {
			end = dayEnd
		}

		if start > cursor && start-cursor >= minMinutes {
			breaks = append(breaks, CommonBreak{
				StartTime:       toClock(cursor),
				EndTime:         toClock(start),
				DurationMinutes: start - cursor,
			})
		}
		if end > cursor {
			cursor = end
		}
	}

	if dayEnd > cursor && dayEnd-cursor >= minMinutes {
		breaks = append(breaks, CommonBreak{
			StartTime:       toClock(cursor),
			EndTime:         toClock(dayEnd),
			DurationMinutes: dayEnd - cursor,
		})
	}

	return breaks
}

// commonBreaks overlays the stored timetable with a friend's ephemeral one
// and reports the gaps both leave free, Monday through Saturday.
func commonBreaks(user []*models.TimetableEntry, friend []adapter.TimetableRecord) []DayBreaks {
	dayStart := toMinutes(collegeDayStart)
	dayEnd := toMinutes(collegeDayEnd)

	result := make([]DayBreaks, 0, 6)
	for day := 1; day <= 6; day++ {
		var busy []timeInterval
		for _, e := range user {
			if e.DayOfWeek == day {
				busy = append(busy, timeInterval{start: toMinutes(e.StartTime), end: toMinutes(e.EndTime)})
			}
		}
		for _, e := range friend {
			if e.DayOfWeek == day {
				busy = append(busy, timeInterval{start: toMinutes(e.StartTime), end: toMinutes(e.EndTime)})
			}
		}

		result = append(result, DayBreaks{
			DayOfWeek: day,
			DayName:   time.Weekday(day).String(),
			Breaks:    freeSlots(mergeIntervals(busy), dayStart, dayEnd, minBreakMinutes),
		})
	}

	return result
}
