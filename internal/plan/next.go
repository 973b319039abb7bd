package plan

// NextTask returns the highest-scored task that is not in completedIDs, or
// nil when every task is complete. Ties are broken by input order: the scan
// is stable, so an equal score never displaces an earlier task.
func NextTask(p *Plan, completedIDs []string) *Task {
	completed := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	var best *Task
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if completed[t.ID] || t.Status == TaskStatusCompleted {
			continue
		}
		if best == nil || t.PriorityScore > best.PriorityScore {
			best = t
		}
	}
	return best
}
