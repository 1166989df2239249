package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing.
// Expectations are matched on ctx, dir, name and then each arg in order.
type MockCommandRunner struct {
	mock.Mock
}

var _ CommandRunner = &MockCommandRunner{} // Compile-time check

// Run implements the CommandRunner interface.
func (m *MockCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	mockArgs := []any{ctx, dir, name}
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}
