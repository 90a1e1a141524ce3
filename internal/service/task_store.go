package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasklist/internal/model"
)

// DefaultStorageKey is the slot the whole collection is written under.
const DefaultStorageKey = "@tasks"

// ErrMalformedRecord is reported when the stored collection cannot be decoded.
var ErrMalformedRecord = errors.New("malformed task record")

// Storage is a durable key-value slot service.
type Storage interface {
	// Get returns the value under key; ok is false when nothing is stored.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites the value under key.
	Set(ctx context.Context, key, value string) error
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *TaskStore) { s.key = key }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) { s.now = now }
}

// WithIDGenerator overrides the task id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *TaskStore) { s.newID = newID }
}

// WithErrorSink receives persistence failures that no caller waits for.
func WithErrorSink(sink func(error)) Option {
	return func(s *TaskStore) { s.onError = sink }
}

// WithWriteTimeout bounds each background write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *TaskStore) { s.writeTimeout = d }
}

// TaskStore owns the task collection and keeps the storage slot in sync with it.
// Mutations apply to memory immediately; the durable write happens on a
// background writer that always stores the newest snapshot.
type TaskStore struct {
	storage      Storage
	key          string
	now          func() time.Time
	newID        func() string
	onError      func(error)
	writeTimeout time.Duration

	mu      sync.RWMutex
	tasks   []model.Task
	version uint64
	saved   uint64

	// writeMu serialises writes so a stale snapshot never lands after a newer one.
	writeMu sync.Mutex

	dirty     chan struct{}
	quit      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewTaskStore(storage Storage, opts ...Option) *TaskStore {
	s := &TaskStore{
		storage:      storage,
		key:          DefaultStorageKey,
		now:          time.Now,
		newID:        uuid.NewString,
		writeTimeout: 10 * time.Second,
		tasks:        []model.Task{},
		dirty:        make(chan struct{}, 1),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	s.onError = func(err error) {
		log.Printf("[error] task store: %v", err)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the collection from storage. A missing slot yields an empty
// list. A malformed slot also yields an empty list: the raw value is copied
// aside and ErrMalformedRecord goes to the error sink.
func (s *TaskStore) Load(ctx context.Context) error {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	tasks := []model.Task{}
	if ok && strings.TrimSpace(raw) != "" {
		decoded, err := model.DecodeTasks(raw)
		if err != nil {
			s.report(fmt.Errorf("%w under %q: %v", ErrMalformedRecord, s.key, err))
			if err := s.storage.Set(ctx, s.malformedKey(), raw); err != nil {
				s.report(fmt.Errorf("keep malformed record: %w", err))
			}
		} else {
			tasks = decoded
		}
	}

	s.mu.Lock()
	s.tasks = tasks
	s.saved = s.version
	s.mu.Unlock()

	log.Printf("[info] loaded %d tasks from %q", len(tasks), s.key)
	return nil
}

// Start launches the background writer. Mutations made before Start are
// written once it runs.
func (s *TaskStore) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Close stops the background writer and flushes any unsaved state.
func (s *TaskStore) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })
	// Never started: there is no writer to wait for.
	s.startOnce.Do(func() { close(s.stopped) })

	select {
	case <-s.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Flush(ctx)
}

// Tasks returns a snapshot of the collection in insertion order.
func (s *TaskStore) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Task returns a snapshot of one task.
func (s *TaskStore) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// AddTask appends a task with the trimmed title. Empty titles are ignored.
func (s *TaskStore) AddTask(title string) (model.Task, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, false
	}

	s.mu.Lock()
	task := model.Task{
		ID:        s.uniqueID(),
		Title:     title,
		CreatedAt: model.NormalizeTime(s.now()),
	}
	s.tasks = append(s.tasks, task)
	s.touch()
	s.mu.Unlock()

	s.schedule()
	return task.Clone(), true
}

// ToggleTask flips the done flag. Completing stamps CompletedAt with the
// current time; reopening clears it.
func (s *TaskStore) ToggleTask(id string) (model.Task, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, false
	}
	task := &s.tasks[i]
	task.Done = !task.Done
	if task.Done {
		completed := model.NormalizeTime(s.now())
		task.CompletedAt = &completed
	} else {
		task.CompletedAt = nil
	}
	updated := task.Clone()
	s.touch()
	s.mu.Unlock()

	s.schedule()
	return updated, true
}

// EditTask replaces the title as given; done state is left alone.
func (s *TaskStore) EditTask(id, title string) (model.Task, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, false
	}
	s.tasks[i].Title = title
	updated := s.tasks[i].Clone()
	s.touch()
	s.mu.Unlock()

	s.schedule()
	return updated, true
}

// DeleteTask removes the task. Unknown ids are a no-op.
func (s *TaskStore) DeleteTask(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.touch()
	s.mu.Unlock()

	s.schedule()
	return true
}

// Dirty reports whether memory holds changes not yet written.
func (s *TaskStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved < s.version
}

// Flush writes the collection now if it changed since the last successful write.
func (s *TaskStore) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.saved >= s.version {
		s.mu.RUnlock()
		return nil
	}
	version := s.version
	snapshot := cloneTasks(s.tasks)
	s.mu.RUnlock()

	raw, err := model.EncodeTasks(snapshot)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
	return nil
}

func (s *TaskStore) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			return
		case <-s.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
			if err := s.Flush(ctx); err != nil {
				s.report(err)
			}
			cancel()
		}
	}
}

// schedule wakes the writer; pending signals coalesce.
func (s *TaskStore) schedule() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// touch marks memory ahead of storage. Caller holds mu.
func (s *TaskStore) touch() {
	s.version++
}

// indexOf finds id in the collection. Caller holds mu.
func (s *TaskStore) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID draws ids until one is unused. Caller holds mu.
func (s *TaskStore) uniqueID() string {
	for {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *TaskStore) malformedKey() string {
	return s.key + ".malformed"
}

func (s *TaskStore) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, task := range tasks {
		out[i] = task.Clone()
	}
	return out
}
