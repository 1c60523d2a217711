package progress

import (
	"context"
	"sync"

	"chatvault/pkg/domain"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]Status
}

// NewMemoryStore returns an empty in-memory status store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]Status)}
}

func (s *MemoryStore) set(taskID string, mutate func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tasks[taskID]
	st.ID = taskID
	mutate(&st)
	s.tasks[taskID] = st
}

func (s *MemoryStore) SetPending(_ context.Context, taskID string) error {
	s.set(taskID, func(st *Status) { st.State = StatePending })
	return nil
}

func (s *MemoryStore) Report(_ context.Context, taskID string, p domain.TaskProgress) error {
	s.set(taskID, func(st *Status) {
		st.State = StateRunning
		st.Progress = p
	})
	return nil
}

func (s *MemoryStore) SetCompleted(_ context.Context, taskID string, result map[string]any) error {
	s.set(taskID, func(st *Status) {
		st.State = StateCompleted
		st.Result = result
		st.Error = ""
	})
	return nil
}

func (s *MemoryStore) SetFailed(_ context.Context, taskID, errMsg string, result map[string]any) error {
	s.set(taskID, func(st *Status) {
		st.State = StateFailed
		st.Result = result
		st.Error = errMsg
	})
	return nil
}

func (s *MemoryStore) SetCancelled(_ context.Context, taskID string) error {
	s.set(taskID, func(st *Status) { st.State = StateCancelled })
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[taskID]
	return st, ok, nil
}
