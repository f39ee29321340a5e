package analytics

// Policy holds every threshold the aggregators use. The trend and improvement figures are
// heuristics; swapping them out only touches this struct.
type Policy struct {
	// Lower bounds (inclusive) of the distribution buckets. Anything below NeedsImprovement fails.
	Excellent        float64
	Good             float64
	Satisfactory     float64
	NeedsImprovement float64

	SubjectTrendThreshold float64
	PeriodTrendThreshold  float64
	TrendPeriods          int

	MinStudentRecords    int
	TopPerformerMean     float64
	TopPerformerLimit    int
	PassMark             float64
	MinFailingRecords    int
	ImprovementTarget    float64
	UnderperformerLimit  int
	ConsistencyDivisor   float64
	ConsistencyBaseScore float64
}

func DefaultPolicy() Policy {
	return Policy{
		Excellent:        80,
		Good:             70,
		Satisfactory:     60,
		NeedsImprovement: 40,

		SubjectTrendThreshold: 2,
		PeriodTrendThreshold:  3,
		TrendPeriods:          6,

		MinStudentRecords:    3,
		TopPerformerMean:     85,
		TopPerformerLimit:    10,
		PassMark:             60,
		MinFailingRecords:    2,
		ImprovementTarget:    70,
		UnderperformerLimit:  15,
		ConsistencyDivisor:   10,
		ConsistencyBaseScore: 100,
	}
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

func trend(recent, baseline, threshold float64) Trend {
	switch diff := recent - baseline; {
	case diff > threshold:
		return TrendUp
	case diff < -threshold:
		return TrendDown
	}
	return TrendStable
}
