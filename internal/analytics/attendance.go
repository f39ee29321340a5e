package analytics

import (
	"math"
	"sort"

	"edufam/academics/internal/model"
)

type AttendanceCounts struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
}

// Rate counts late arrivals as attended.
func (c AttendanceCounts) Rate() int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(float64(c.Present+c.Late) / float64(c.Total) * 100))
}

func (c *AttendanceCounts) add(status model.AttendanceStatus) {
	c.Total++
	switch status {
	case model.AttendancePresent:
		c.Present++
	case model.AttendanceLate:
		c.Late++
	case model.AttendanceExcused:
		c.Excused++
	default:
		c.Absent++
	}
}

type ClassAttendance struct {
	ClassID        string           `json:"classId"`
	Counts         AttendanceCounts `json:"counts"`
	AttendanceRate int              `json:"attendanceRate"`
}

type StudentAttendance struct {
	StudentID      string           `json:"studentId"`
	Counts         AttendanceCounts `json:"counts"`
	AttendanceRate int              `json:"attendanceRate"`
}

type AttendanceSummary struct {
	Counts         AttendanceCounts    `json:"counts"`
	AttendanceRate int                 `json:"attendanceRate"`
	Classes        []ClassAttendance   `json:"classes"`
	Students       []StudentAttendance `json:"students"`
}

// SummarizeAttendance counts records per status. Classes are listed best rate first and
// students worst rate first; ties keep first-encounter order.
func SummarizeAttendance(records []model.AttendanceRecord) AttendanceSummary {
	summary := AttendanceSummary{Classes: []ClassAttendance{}, Students: []StudentAttendance{}}

	classIndex := map[string]int{}
	studentIndex := map[string]int{}
	for _, r := range records {
		summary.Counts.add(r.Status)

		i, ok := classIndex[r.ClassID]
		if !ok {
			i = len(summary.Classes)
			classIndex[r.ClassID] = i
			summary.Classes = append(summary.Classes, ClassAttendance{ClassID: r.ClassID})
		}
		summary.Classes[i].Counts.add(r.Status)

		j, ok := studentIndex[r.StudentID]
		if !ok {
			j = len(summary.Students)
			studentIndex[r.StudentID] = j
			summary.Students = append(summary.Students, StudentAttendance{StudentID: r.StudentID})
		}
		summary.Students[j].Counts.add(r.Status)
	}

	summary.AttendanceRate = summary.Counts.Rate()
	for i := range summary.Classes {
		summary.Classes[i].AttendanceRate = summary.Classes[i].Counts.Rate()
	}
	for i := range summary.Students {
		summary.Students[i].AttendanceRate = summary.Students[i].Counts.Rate()
	}
	sort.SliceStable(summary.Classes, func(i, j int) bool {
		return summary.Classes[i].AttendanceRate > summary.Classes[j].AttendanceRate
	})
	sort.SliceStable(summary.Students, func(i, j int) bool {
		return summary.Students[i].AttendanceRate < summary.Students[j].AttendanceRate
	})
	return summary
}
