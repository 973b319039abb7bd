// Package memory holds the long-lived per-user behavioral memory that
// reflection reads and updates across plan runs.
package memory

import "time"

// Pattern is one recognized behavioral pattern. Patterns are upserted by
// their Pattern key: repeated observations increment Occurrences and refresh
// the description and confidence, never duplicating an entry.
type Pattern struct {
	Pattern         string    `json:"pattern"`
	Description     string    `json:"description"`
	Confidence      float64   `json:"confidence"`
	Occurrences     int       `json:"occurrences"`
	FirstIdentified time.Time `json:"firstIdentified"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Stats is the rolled-up outcome of the most recent reflection. It is
// recomputed from each observation set rather than accumulated, so memory
// stays a snapshot, not a log of every past reflection.
type Stats struct {
	TotalTasksAttempted   int     `json:"totalTasksAttempted"`
	TotalTasksCompleted   int     `json:"totalTasksCompleted"`
	OverallCompletionRate float64 `json:"overallCompletionRate"`
}

// UserMemory is the persistent per-user memory structure. It is the only
// cross-run shared mutable state; callers must persist it with a
// compare-and-swap so concurrent reflections cannot interleave partial
// pattern upserts.
type UserMemory struct {
	CompletionRate float64   `json:"completionRate"`
	PreferredTimes []string  `json:"preferredTimes"`
	Patterns       []Pattern `json:"patterns"`
	Stats          Stats     `json:"stats"`
}

// New returns an empty memory for a user with no history.
func New() *UserMemory {
	return &UserMemory{}
}

// PatternUpdate is one pattern observation produced by reflection.
type PatternUpdate struct {
	Pattern     string  `json:"pattern"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// UpsertPattern merges an observation into the pattern set by Pattern key.
// An existing entry keeps its FirstIdentified timestamp and gains one
// occurrence; a new entry starts at one occurrence.
func (m *UserMemory) UpsertPattern(u PatternUpdate, now time.Time) {
	if u.Pattern == "" {
		return
	}
	for i := range m.Patterns {
		if m.Patterns[i].Pattern == u.Pattern {
			if u.Description != "" {
				m.Patterns[i].Description = u.Description
			}
			if u.Confidence > 0 {
				m.Patterns[i].Confidence = u.Confidence
			}
			m.Patterns[i].Occurrences++
			m.Patterns[i].LastUpdated = now
			return
		}
	}
	m.Patterns = append(m.Patterns, Pattern{
		Pattern:         u.Pattern,
		Description:     u.Description,
		Confidence:      u.Confidence,
		Occurrences:     1,
		FirstIdentified: now,
		LastUpdated:     now,
	})
}

// AddPreferredTime records a preferred time of day if not already present.
func (m *UserMemory) AddPreferredTime(timeOfDay string) {
	if timeOfDay == "" {
		return
	}
	for _, t := range m.PreferredTimes {
		if t == timeOfDay {
			return
		}
	}
	m.PreferredTimes = append(m.PreferredTimes, timeOfDay)
}

// RecordOutcomes replaces the rolled-up stats with the latest observation
// counts and refreshes the headline completion rate.
func (m *UserMemory) RecordOutcomes(attempted, completed int) {
	m.Stats.TotalTasksAttempted = attempted
	m.Stats.TotalTasksCompleted = completed
	if attempted > 0 {
		m.Stats.OverallCompletionRate = float64(completed) / float64(attempted) * 100
	} else {
		m.Stats.OverallCompletionRate = 0
	}
	m.CompletionRate = m.Stats.OverallCompletionRate
}
