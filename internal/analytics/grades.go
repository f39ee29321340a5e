package analytics

import (
	"fmt"
	"math"
	"sort"

	"edufam/academics/internal/model"
)

// GradeFilter narrows an already fetched record set. Empty fields match everything.
type GradeFilter struct {
	ClassID      string `json:"classId,omitempty"`
	SubjectID    string `json:"subjectId,omitempty"`
	Term         string `json:"term,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
	ExamType     string `json:"examType,omitempty"`
}

func (f GradeFilter) match(r model.GradeRecord) bool {
	return (f.ClassID == "" || f.ClassID == r.ClassID) &&
		(f.SubjectID == "" || f.SubjectID == r.SubjectID) &&
		(f.Term == "" || f.Term == r.Term) &&
		(f.AcademicYear == "" || f.AcademicYear == r.AcademicYear) &&
		(f.ExamType == "" || f.ExamType == r.ExamType)
}

type Distribution struct {
	Excellent        int `json:"excellent"`
	Good             int `json:"good"`
	Satisfactory     int `json:"satisfactory"`
	NeedsImprovement int `json:"needs_improvement"`
	Failing          int `json:"failing"`
}

type SubjectPerformance struct {
	SubjectID        string  `json:"subjectId"`
	RecordCount      int     `json:"recordCount"`
	AverageScore     float64 `json:"averageScore"`
	DifficultyIndex  float64 `json:"difficultyIndex"`
	ImprovementTrend Trend   `json:"improvementTrend"`
}

type ClassPerformance struct {
	ClassID           string  `json:"classId"`
	StudentCount      int     `json:"studentCount"`
	AveragePercentage float64 `json:"averagePercentage"`
	TopStudentID      string  `json:"topStudent"`
	ImprovementRate   int     `json:"improvementRate"`
}

type WorkflowStatus struct {
	Draft           int `json:"draft"`
	PendingApproval int `json:"pending_approval"`
	Approved        int `json:"approved"`
	Rejected        int `json:"rejected"`
	Released        int `json:"released"`
}

type PeriodTrend struct {
	Period         string  `json:"period"`
	Term           string  `json:"term"`
	ExamType       string  `json:"examType"`
	RecordCount    int     `json:"recordCount"`
	AverageScore   float64 `json:"averageScore"`
	TrendDirection Trend   `json:"trendDirection"`
}

type StudentPerformance struct {
	StudentID    string  `json:"studentId"`
	RecordCount  int     `json:"recordCount"`
	AverageScore float64 `json:"averageScore"`
}

type Underperformer struct {
	StudentPerformance
	FailingCount         int     `json:"failingCount"`
	ImprovementPotential float64 `json:"improvementPotential"`
}

type GradesSummary struct {
	TotalRecords       int                  `json:"totalRecords"`
	OverallAverage     int                  `json:"overallAverage"`
	GradeDistribution  Distribution         `json:"gradeDistribution"`
	SubjectPerformance []SubjectPerformance `json:"subjectPerformance"`
	ClassPerformance   []ClassPerformance   `json:"classPerformance"`
	WorkflowStatus     WorkflowStatus       `json:"workflowStatus"`
	PerformanceTrends  []PeriodTrend        `json:"performanceTrends"`
	TopPerformers      []StudentPerformance `json:"topPerformers"`
	Underperformers    []Underperformer     `json:"underperformers"`
}

// SummarizeGrades aggregates records in the order supplied; recency-based trends assume that
// order is chronological. A nil filter keeps every record. Empty input gives a zeroed summary.
func SummarizeGrades(records []model.GradeRecord, filter *GradeFilter, policy Policy) GradesSummary {
	if filter != nil {
		kept := make([]model.GradeRecord, 0, len(records))
		for _, r := range records {
			if filter.match(r) {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	summary := GradesSummary{
		TotalRecords:       len(records),
		SubjectPerformance: []SubjectPerformance{},
		ClassPerformance:   []ClassPerformance{},
		PerformanceTrends:  []PeriodTrend{},
		TopPerformers:      []StudentPerformance{},
		Underperformers:    []Underperformer{},
	}
	if len(records) == 0 {
		return summary
	}

	percentages := make([]float64, len(records))
	for i, r := range records {
		percentages[i] = r.Percentage
		policy.bucket(&summary.GradeDistribution, r.Percentage)
		countStatus(&summary.WorkflowStatus, r.Status)
	}
	summary.OverallAverage = int(math.Round(mean(percentages)))
	summary.SubjectPerformance = subjectPerformance(records, policy)
	summary.ClassPerformance = classPerformance(records, policy)
	summary.PerformanceTrends = performanceTrends(records, policy)

	students := groupBy(records, func(r model.GradeRecord) string { return r.StudentID })
	summary.TopPerformers = topPerformers(students, policy)
	summary.Underperformers = underperformers(students, policy)
	return summary
}

func (p Policy) bucket(d *Distribution, pct float64) {
	switch {
	case pct >= p.Excellent:
		d.Excellent++
	case pct >= p.Good:
		d.Good++
	case pct >= p.Satisfactory:
		d.Satisfactory++
	case pct >= p.NeedsImprovement:
		d.NeedsImprovement++
	default:
		d.Failing++
	}
}

func countStatus(w *WorkflowStatus, status model.GradeStatus) {
	switch status.Normalize() {
	case model.GradePendingApproval:
		w.PendingApproval++
	case model.GradeApproved:
		w.Approved++
	case model.GradeRejected:
		w.Rejected++
	case model.GradeReleased:
		w.Released++
	default:
		w.Draft++
	}
}

func subjectPerformance(records []model.GradeRecord, policy Policy) []SubjectPerformance {
	groups := groupBy(records, func(r model.GradeRecord) string { return r.SubjectID })
	out := make([]SubjectPerformance, 0, len(groups))
	for _, g := range groups {
		values := g.percentages()
		avg := mean(values)
		window := int(math.Ceil(float64(len(values)) / 3))
		recent := mean(values[len(values)-window:])
		out = append(out, SubjectPerformance{
			SubjectID:        g.key,
			RecordCount:      len(values),
			AverageScore:     round2(avg),
			DifficultyIndex:  round2(math.Max(0, 100-avg) / 100),
			ImprovementTrend: trend(recent, avg, policy.SubjectTrendThreshold),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageScore > out[j].AverageScore })
	return out
}

func classPerformance(records []model.GradeRecord, policy Policy) []ClassPerformance {
	groups := groupBy(records, func(r model.GradeRecord) string { return r.ClassID })
	out := make([]ClassPerformance, 0, len(groups))
	for _, g := range groups {
		values := g.percentages()
		students := groupBy(g.records, func(r model.GradeRecord) string { return r.StudentID })

		var (
			top     string
			topMean = math.Inf(-1)
		)
		for _, s := range students {
			if m := mean(s.percentages()); m > topMean {
				top, topMean = s.key, m
			}
		}

		consistency := math.Round((policy.ConsistencyBaseScore - math.Sqrt(variance(values))) / policy.ConsistencyDivisor)
		out = append(out, ClassPerformance{
			ClassID:           g.key,
			StudentCount:      len(students),
			AveragePercentage: round2(mean(values)),
			TopStudentID:      top,
			ImprovementRate:   int(math.Max(0, consistency)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AveragePercentage > out[j].AveragePercentage })
	return out
}

// performanceTrends orders periods by their "term - examType" key. Directions are computed over
// every period before the list is cut to the most recent ones.
func performanceTrends(records []model.GradeRecord, policy Policy) []PeriodTrend {
	groups := groupBy(records, func(r model.GradeRecord) string { return periodKey(r.Term, r.ExamType) })
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].key < groups[j].key })

	out := make([]PeriodTrend, 0, len(groups))
	var previous float64
	for i, g := range groups {
		avg := mean(g.percentages())
		direction := TrendStable
		if i > 0 {
			direction = trend(avg, previous, policy.PeriodTrendThreshold)
		}
		previous = avg
		first := g.records[0]
		out = append(out, PeriodTrend{
			Period:         g.key,
			Term:           first.Term,
			ExamType:       first.ExamType,
			RecordCount:    len(g.records),
			AverageScore:   round2(avg),
			TrendDirection: direction,
		})
	}
	if policy.TrendPeriods > 0 && len(out) > policy.TrendPeriods {
		out = out[len(out)-policy.TrendPeriods:]
	}
	return out
}

func periodKey(term, examType string) string {
	return fmt.Sprintf("%s - %s", term, examType)
}

func topPerformers(students []group, policy Policy) []StudentPerformance {
	out := []StudentPerformance{}
	for _, s := range students {
		if len(s.records) < policy.MinStudentRecords {
			continue
		}
		if avg := mean(s.percentages()); avg >= policy.TopPerformerMean {
			out = append(out, StudentPerformance{StudentID: s.key, RecordCount: len(s.records), AverageScore: round2(avg)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageScore > out[j].AverageScore })
	if len(out) > policy.TopPerformerLimit {
		out = out[:policy.TopPerformerLimit]
	}
	return out
}

func underperformers(students []group, policy Policy) []Underperformer {
	out := []Underperformer{}
	for _, s := range students {
		if len(s.records) < policy.MinStudentRecords {
			continue
		}
		values := s.percentages()
		avg := mean(values)
		failing := 0
		for _, v := range values {
			if v < policy.PassMark {
				failing++
			}
		}
		if avg >= policy.PassMark && failing < policy.MinFailingRecords {
			continue
		}
		out = append(out, Underperformer{
			StudentPerformance:   StudentPerformance{StudentID: s.key, RecordCount: len(values), AverageScore: round2(avg)},
			FailingCount:         failing,
			ImprovementPotential: round2(math.Max(0, policy.ImprovementTarget-avg)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ImprovementPotential > out[j].ImprovementPotential })
	if len(out) > policy.UnderperformerLimit {
		out = out[:policy.UnderperformerLimit]
	}
	return out
}

type group struct {
	key     string
	records []model.GradeRecord
}

func (g group) percentages() []float64 {
	out := make([]float64, len(g.records))
	for i, r := range g.records {
		out[i] = r.Percentage
	}
	return out
}

// groupBy keeps groups in first-encounter order and records in supplied order.
func groupBy(records []model.GradeRecord, key func(model.GradeRecord) string) []group {
	index := map[string]int{}
	var groups []group
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
