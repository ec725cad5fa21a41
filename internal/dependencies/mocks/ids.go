package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/arcade-judge/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing.
// It returns queued ids first, then "<prefix>-<n>" sequential ids.
type MockIDs struct {
	mu     sync.Mutex
	Prefix string
	queue  []string
	next   int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a MockIDs producing "id-1", "id-2", ...
func NewMockIDs() *MockIDs {
	return &MockIDs{Prefix: "id"}
}

// NewID returns the next queued id, or the next sequential id if none remain
func (m *MockIDs) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]
		return id
	}
	m.next++
	return fmt.Sprintf("%s-%d", m.Prefix, m.next)
}

// Queue adds ids to be returned before sequential ones
func (m *MockIDs) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, values...)
}
