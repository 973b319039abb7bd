package plan

// Fixed recommendation messages for feasibility reports.
const (
	RecommendationOverloaded  = "Some days exceed your available hours. Consider extending the deadline or raising hours per day."
	RecommendationTight       = "The schedule is tight but achievable. Protect your study blocks."
	RecommendationComfortable = "The schedule has comfortable margins."
)

// Feasibility is the result of checking a completed schedule against the
// daily hour cap.
type Feasibility struct {
	IsFeasible         bool    `json:"isFeasible"`
	OverloadedDays     int     `json:"overloadedDays"`
	AverageHoursPerDay float64 `json:"averageHoursPerDay"`
	LoadPercent        float64 `json:"loadPercent"`
	Recommendation     string  `json:"recommendation"`
}

// AnalyzeFeasibility inspects a schedule for days whose total hours exceed
// the daily cap. It is a pure function: the schedule is not modified. A day
// may legitimately exceed the cap when a single task's buffered duration is
// larger than the cap itself; this surfaces that instead of hiding it.
func AnalyzeFeasibility(schedule []ScheduleDay, hoursPerDay float64) Feasibility {
	f := Feasibility{IsFeasible: true}
	if len(schedule) == 0 || hoursPerDay <= 0 {
		f.Recommendation = RecommendationComfortable
		return f
	}

	var total float64
	for _, day := range schedule {
		total += day.TotalHours
		if day.TotalHours > hoursPerDay {
			f.OverloadedDays++
		}
	}

	f.AverageHoursPerDay = total / float64(len(schedule))
	f.LoadPercent = f.AverageHoursPerDay / hoursPerDay * 100
	f.IsFeasible = f.OverloadedDays == 0

	switch {
	case !f.IsFeasible:
		f.Recommendation = RecommendationOverloaded
	case f.LoadPercent > 80:
		f.Recommendation = RecommendationTight
	default:
		f.Recommendation = RecommendationComfortable
	}

	return f
}
