package tasks

import "sync"

// MemoryQueue represents a task queue in memory.
type MemoryQueue struct {
	waiting chan TaskID

	mu       sync.RWMutex
	progress map[TaskID]bool
	finished map[TaskID]bool
}

// NewMemoryQueue returns a new memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		waiting:  make(chan TaskID, 64),
		progress: make(map[TaskID]bool),
		finished: make(map[TaskID]bool),
	}
}

// Enqueue enqueues a task.
func (m *MemoryQueue) Enqueue(taskID TaskID) bool {
	m.waiting <- taskID
	return true
}

// Working takes a TaskID from the waiting tasks, blocking until one is
// available, and marks it in progress.
func (m *MemoryQueue) Working() TaskID {
	tID := <-m.waiting

	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[tID] = true
	return tID
}

// ListWorking returns a slice of all TaskIDs in the working state.
func (m *MemoryQueue) ListWorking() []TaskID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]TaskID, 0, len(m.progress))
	for tID := range m.progress {
		ids = append(ids, tID)
	}
	return ids
}

// Finish marks a taskID as finished if it is in progress already.
func (m *MemoryQueue) Finish(taskID TaskID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.progress[taskID] {
		return false
	}
	delete(m.progress, taskID)
	m.finished[taskID] = true
	return true
}

// ListFinished returns a slice of all TaskIDs in the finished state.
func (m *MemoryQueue) ListFinished() []TaskID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]TaskID, 0, len(m.finished))
	for tID := range m.finished {
		ids = append(ids, tID)
	}
	return ids
}

// MemoryStorage is an in-memory task storer.
type MemoryStorage struct {
	taskStorage map[TaskID]Task
	sync.RWMutex
}

// NewMemoryStorage returns a new MemoryStorage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		taskStorage: make(map[TaskID]Task),
	}
}

// Get returns a task with a given TaskID.
func (s *MemoryStorage) Get(taskID TaskID) (Task, bool) {
	s.RLock()
	defer s.RUnlock()

	t, ok := s.taskStorage[taskID]
	return t, ok
}

// Put puts a task with the given taskID.
func (s *MemoryStorage) Put(task Task, taskID TaskID) bool {
	s.Lock()
	defer s.Unlock()

	s.taskStorage[taskID] = task
	return true
}
