package compose

import (
	"context"
	"sync"
)

// =============================================================================
// Mock Implementation
// =============================================================================

// MockExecutor is a test double for Executor.
//
// # Description
//
// Provides a configurable mock implementation for testing.
// Each method can be configured with a custom function.
// Tracks all calls for verification.
//
// # Example
//
//	mock := &MockExecutor{
//	    UpFunc: func(ctx context.Context, opts UpOptions) (*Result, error) {
//	        return &Result{Success: true}, nil
//	    },
//	}
//	result, _ := mock.Up(ctx, UpOptions{})
//	assert.Equal(t, 1, len(mock.UpCalls))
type MockExecutor struct {
	UpFunc              func(context.Context, UpOptions) (*Result, error)
	DownFunc            func(context.Context, DownOptions) (*Result, error)
	StopFunc            func(context.Context, StopOptions) (*Result, error)
	RmFunc              func(context.Context, RmOptions) (*Result, error)
	BuildFunc           func(context.Context, BuildOptions) (*Result, error)
	PullFunc            func(context.Context, PullOptions) (*Result, error)
	GetComposeFilesFunc func() []string

	UpCalls    []UpOptions
	DownCalls  []DownOptions
	StopCalls  []StopOptions
	RmCalls    []RmOptions
	BuildCalls []BuildOptions
	PullCalls  []PullOptions
	mu         sync.Mutex
}

// Up implements Executor.
func (m *MockExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	m.mu.Lock()
	m.UpCalls = append(m.UpCalls, opts)
	m.mu.Unlock()

	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Down implements Executor.
func (m *MockExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	m.mu.Lock()
	m.DownCalls = append(m.DownCalls, opts)
	m.mu.Unlock()

	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Stop implements Executor.
func (m *MockExecutor) Stop(ctx context.Context, opts StopOptions) (*Result, error) {
	m.mu.Lock()
	m.StopCalls = append(m.StopCalls, opts)
	m.mu.Unlock()

	if m.StopFunc != nil {
		return m.StopFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Rm implements Executor.
func (m *MockExecutor) Rm(ctx context.Context, opts RmOptions) (*Result, error) {
	m.mu.Lock()
	m.RmCalls = append(m.RmCalls, opts)
	m.mu.Unlock()

	if m.RmFunc != nil {
		return m.RmFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Build implements Executor.
func (m *MockExecutor) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	m.mu.Lock()
	m.BuildCalls = append(m.BuildCalls, opts)
	m.mu.Unlock()

	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Pull implements Executor.
func (m *MockExecutor) Pull(ctx context.Context, opts PullOptions) (*Result, error) {
	m.mu.Lock()
	m.PullCalls = append(m.PullCalls, opts)
	m.mu.Unlock()

	if m.PullFunc != nil {
		return m.PullFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// GetComposeFiles implements Executor.
func (m *MockExecutor) GetComposeFiles() []string {
	if m.GetComposeFilesFunc != nil {
		return m.GetComposeFilesFunc()
	}
	return []string{}
}

// Reset clears all recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpCalls = nil
	m.DownCalls = nil
	m.StopCalls = nil
	m.RmCalls = nil
	m.BuildCalls = nil
	m.PullCalls = nil
}

// Compile-time assertion that MockExecutor satisfies Executor.
var _ Executor = (*MockExecutor)(nil)
