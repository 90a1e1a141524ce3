package model

import (
	"fmt"
	"strings"
)

// Filter selects which tasks a view shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

func (f Filter) IsValid() bool {
	return f == FilterAll || f == FilterActive || f == FilterCompleted
}

// Matches reports whether task passes the filter.
func (f Filter) Matches(task Task) bool {
	switch f {
	case FilterActive:
		return !task.Done
	case FilterCompleted:
		return task.Done
	default:
		return true
	}
}

// Label is the human-readable filter name.
func (f Filter) Label() string {
	switch f {
	case FilterActive:
		return "Active"
	case FilterCompleted:
		return "Completed"
	default:
		return "All"
	}
}

// ParseFilter accepts a filter name in any case. An empty string means all.
func ParseFilter(raw string) (Filter, error) {
	value := Filter(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return FilterAll, nil
	}
	if !value.IsValid() {
		return "", fmt.Errorf("unknown filter %q", raw)
	}
	return value, nil
}
