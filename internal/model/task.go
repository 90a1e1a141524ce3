package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task represents a single item on the personal list.
type Task struct {
	ID          string
	Title       string
	Done        bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		t.CompletedAt = &completed
	}
	return t
}

// Timestamp is the moment a task is filed under when grouping by date:
// completion time when present, creation time otherwise.
func (t Task) Timestamp() time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}

// taskRecord is the durable shape of a Task. Timestamps are epoch milliseconds.
type taskRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Done        bool   `json:"done"`
	CompletedAt *int64 `json:"completedAt"`
	CreatedAt   *int64 `json:"createdAt,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	rec := taskRecord{
		ID:    t.ID,
		Title: t.Title,
		Done:  t.Done,
	}
	if t.CompletedAt != nil {
		ms := t.CompletedAt.UnixMilli()
		rec.CompletedAt = &ms
	}
	if !t.CreatedAt.IsZero() {
		ms := t.CreatedAt.UnixMilli()
		rec.CreatedAt = &ms
	}
	return json.Marshal(rec)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var rec taskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	task := Task{ID: rec.ID, Title: rec.Title, Done: rec.Done}
	if rec.Done && rec.CompletedAt != nil {
		completed := FromMillis(*rec.CompletedAt)
		task.CompletedAt = &completed
	}

	switch {
	case rec.CreatedAt != nil:
		task.CreatedAt = FromMillis(*rec.CreatedAt)
	case isDigits(rec.ID):
		// Older records carried no createdAt; their id was the creation time.
		ms, err := strconv.ParseInt(rec.ID, 10, 64)
		if err == nil {
			task.CreatedAt = FromMillis(ms)
		}
	case task.CompletedAt != nil:
		task.CreatedAt = *task.CompletedAt
	}

	*t = task
	return nil
}

// EncodeTasks serialises the collection in the durable slot format.
func EncodeTasks(tasks []Task) (string, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("encode tasks: %w", err)
	}
	return string(raw), nil
}

// DecodeTasks parses a durable slot value. Records with an empty or
// repeated id make the whole value invalid.
func DecodeTasks(raw string) ([]Task, error) {
	var tasks []Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	if tasks == nil {
		return nil, fmt.Errorf("decode tasks: value is not a list")
	}

	seen := make(map[string]struct{}, len(tasks))
	for i, task := range tasks {
		if strings.TrimSpace(task.ID) == "" {
			return nil, fmt.Errorf("decode tasks: record %d has no id", i)
		}
		if _, dup := seen[task.ID]; dup {
			return nil, fmt.Errorf("decode tasks: duplicate id %q", task.ID)
		}
		seen[task.ID] = struct{}{}
	}
	return tasks, nil
}

// NormalizeTime converts t to UTC at the precision the durable format keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
