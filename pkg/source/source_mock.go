package source

import (
	"context"
)

// MockSource is a mock implementation of Source for testing
type MockSource struct {
	MockSnapshot *Snapshot
	MockError    error
	Calls        int
}

func (m *MockSource) Name() string {
	return "mock"
}

func (m *MockSource) Load(ctx context.Context) (*Snapshot, error) {
	m.Calls++
	return m.MockSnapshot, m.MockError
}
