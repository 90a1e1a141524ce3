package service

import (
	"time"

	"tasklist/internal/model"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	LabelThisWeek  = "This week"
)

// Group is one dated section of a projected view.
type Group struct {
	Label string
	Tasks []model.Task
}

// Project filters tasks and buckets them by date relative to now. Groups
// appear in the order their first task appears; tasks keep their relative
// order. The input is never modified.
func Project(tasks []model.Task, filter model.Filter, now time.Time) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, task := range tasks {
		if !filter.Matches(task) {
			continue
		}
		label := GroupLabel(task.Timestamp(), now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Tasks = append(groups[i].Tasks, task.Clone())
	}
	return groups
}

// GroupLabel names the bucket for ref as seen from now, in now's location.
func GroupLabel(ref, now time.Time) string {
	ref = ref.In(now.Location())

	if sameDay(ref, now) {
		return LabelToday
	}
	if sameDay(ref, now.AddDate(0, 0, -1)) {
		return LabelYesterday
	}
	if ref.After(now.AddDate(0, 0, -7)) {
		return LabelThisWeek
	}
	return ref.Format("January 2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
