package plan

import "time"

// Complexity levels for a goal.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// DeadlineNotSpecified is the sentinel deadline value used when a goal does
// not mention any time constraint.
const DeadlineNotSpecified = "not specified"

// GoalDescriptor is the structured summary of a user's stated objective.
// It is created once by goal analysis and is immutable afterwards.
type GoalDescriptor struct {
	OriginalGoal        string `json:"originalGoal"`
	ParsedDeadline      string `json:"parsedDeadline"`
	Subject             string `json:"subject"`
	Complexity          string `json:"complexity"`
	RecommendedApproach string `json:"recommendedApproach"`
}

// ValidComplexity reports whether s is one of the known complexity levels.
func ValidComplexity(s string) bool {
	return s == ComplexityLow || s == ComplexityMedium || s == ComplexityHigh
}

// Task priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether s is one of the known priority levels.
func ValidPriority(s string) bool {
	return s == PriorityLow || s == PriorityMedium || s == PriorityHigh
}

// Task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
	TaskStatusMissed     = "missed"
)

// Hour bounds for a single task estimate.
const (
	MinEstimatedHours     = 0.5
	MaxEstimatedHours     = 40.0
	DefaultEstimatedHours = 2.0
)

// Task is one atomic unit of work with an hour estimate and a priority score.
// PriorityScore is 0 until the scoring stage assigns an integer in [1,10].
type Task struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimatedHours"`
	Priority       string  `json:"priority"`
	Order          int     `json:"order"`
	Status         string  `json:"status"`
	PriorityScore  int     `json:"priorityScore,omitempty"`
	ScoreReasoning string  `json:"scoreReasoning,omitempty"`
	Goal           string  `json:"goal"`
}

// Times of day for schedule slots.
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
)

// BaseHour returns the starting clock hour for a time-of-day slot.
func BaseHour(timeOfDay string) int {
	switch timeOfDay {
	case TimeMorning:
		return 9
	case TimeAfternoon:
		return 14
	case TimeEvening:
		return 18
	default:
		return 9
	}
}

// ScheduledTask places one task into a day's time slot. A task appears in
// exactly one ScheduledTask per schedule generation. BufferAfter is derived
// from the buffer percentage, never independently authored.
type ScheduledTask struct {
	TaskID          string  `json:"taskId"`
	TaskDescription string  `json:"taskDescription"`
	PriorityScore   int     `json:"priorityScore"`
	StartTime       string  `json:"startTime"`
	Duration        float64 `json:"duration"`
	BufferAfter     float64 `json:"bufferAfter"`
}

// ScheduleDay is one calendar day of the plan. TotalHours includes buffer
// time, so an overloaded day is one whose TotalHours exceed the daily cap.
type ScheduleDay struct {
	Day        int             `json:"day"`
	Date       string          `json:"date"`
	Tasks      []ScheduledTask `json:"tasks"`
	TotalHours float64         `json:"totalHours"`
	TimeOfDay  string          `json:"timeOfDay"`
}

// Summary aggregates schedule-level totals. TotalHours equals the sum of
// task estimates at creation time; the schedule may redistribute hours
// across days but never invents or drops them.
type Summary struct {
	TotalDays          int       `json:"totalDays"`
	TotalHours         float64   `json:"totalHours"`
	AverageHoursPerDay float64   `json:"averageHoursPerDay"`
	TasksScheduled     int       `json:"tasksScheduled"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// Plan is the assembled artifact of one pipeline run.
type Plan struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Goal      GoalDescriptor `json:"goal"`
	Tasks     []Task         `json:"tasks"`
	Schedule  []ScheduleDay  `json:"schedule"`
	Summary   Summary        `json:"summary"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Preferences control schedule construction.
type Preferences struct {
	AvailableHoursPerDay float64   `json:"availableHoursPerDay"`
	PreferredStudyTimes  []string  `json:"preferredStudyTimes"`
	BufferTimePercent    float64   `json:"bufferTimePercent"`
	StartDate            time.Time `json:"startDate"`
}

// DefaultPreferences returns the scheduling defaults: 4 hours per day,
// morning and afternoon slots, 20% buffer, starting today.
func DefaultPreferences() Preferences {
	return Preferences{
		AvailableHoursPerDay: 4,
		PreferredStudyTimes:  []string{TimeMorning, TimeAfternoon},
		BufferTimePercent:    20,
		StartDate:            time.Now(),
	}
}

// UserContext carries scoring context about the user.
type UserContext struct {
	Deadline            string `json:"deadline"`
	UserTendency        string `json:"userTendency"`
	CompletedTasksCount int    `json:"completedTasksCount"`
	OverdueHistory      int    `json:"overdueHistory"`
}

// TaskProgress is one observed outcome for a scheduled task. TaskID must
// carry the plan task's ID for reflection adjustments to match; an unknown
// ID never matches and the observation only feeds the aggregate rates.
type TaskProgress struct {
	TaskID          string    `json:"taskId"`
	TaskDescription string    `json:"taskDescription"`
	Status          string    `json:"status"`
	ScheduledTime   time.Time `json:"scheduledTime,omitzero"`
	CompletedTime   time.Time `json:"completedTime,omitzero"`
	CompletedOnTime bool      `json:"completedOnTime"`
	PriorityScore   int       `json:"priorityScore"`
}

// RoundHalf rounds an hour value to the nearest 0.5.
func RoundHalf(h float64) float64 {
	doubled := h * 2
	rounded := float64(int(doubled + 0.5))
	if doubled < 0 {
		rounded = float64(int(doubled - 0.5))
	}
	return rounded / 2
}

// ClampHours normalizes a task hour estimate: non-positive values fall back
// to the default, values above the maximum are capped, and the result is
// rounded to the nearest half hour.
func ClampHours(h float64) float64 {
	if h <= 0 {
		h = DefaultEstimatedHours
	}
	if h > MaxEstimatedHours {
		h = MaxEstimatedHours
	}
	h = RoundHalf(h)
	if h < MinEstimatedHours {
		h = MinEstimatedHours
	}
	return h
}

// TotalEstimatedHours sums the estimates of all tasks.
func TotalEstimatedHours(tasks []Task) float64 {
	var total float64
	for _, t := range tasks {
		total += t.EstimatedHours
	}
	return total
}
