// Package testutil provides mock implementations of the interfaces defined in the workflow
// and engine packages, plus small filesystem helpers for tests.
//
// Mocks follow the testify/mock pattern: configure expectations with .On(...).Return(...)
// and verify them with AssertExpectations.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// MockActor provides a mock implementation of the workflow.Actor interface.
// SourceDirectory and ReportsDirectory return the Source and Reports fields directly so
// tests do not need expectations for them.
type MockActor struct {
	mock.Mock
	Source  string
	Reports string
}

// SourceDirectory implements workflow.Actor.
func (m *MockActor) SourceDirectory() string { return m.Source }

// ReportsDirectory implements workflow.Actor.
func (m *MockActor) ReportsDirectory() string { return m.Reports }

// InitializeStore mocks the InitializeStore method.
func (m *MockActor) InitializeStore(ctx context.Context, conn engine.Conn) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

// ProcessSourceFiles mocks the ProcessSourceFiles method.
func (m *MockActor) ProcessSourceFiles(ctx context.Context, globPath string, conn engine.Conn) error {
	args := m.Called(ctx, globPath, conn)
	return args.Error(0)
}

// CreateReports mocks the CreateReports method.
func (m *MockActor) CreateReports(ctx context.Context, pathPrefix string, conn engine.Conn) error {
	args := m.Called(ctx, pathPrefix, conn)
	return args.Error(0)
}

// MockHooks provides a mock implementation of the workflow.Hooks interface.
type MockHooks struct {
	mock.Mock
}

// OnRunStart mocks the OnRunStart method.
func (m *MockHooks) OnRunStart(plan workflow.RunPlan) error {
	args := m.Called(plan)
	return args.Error(0)
}

// OnBatchStatusUpdate mocks the OnBatchStatusUpdate method.
func (m *MockHooks) OnBatchStatusUpdate(batch workflow.Batch, status workflow.BatchStatus, message string, duration time.Duration) error {
	args := m.Called(batch, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(summary workflow.RunSummary) error {
	args := m.Called(summary)
	return args.Error(0)
}

// MockFileStore provides a mock implementation of the workflow.FileStore interface.
// Useful for injecting failures a real filesystem cannot easily produce.
type MockFileStore struct {
	mock.Mock
}

// Exists mocks the Exists method.
func (m *MockFileStore) Exists(path string) (bool, error) {
	args := m.Called(path)
	exists, _ := args.Get(0).(bool)
	return exists, args.Error(1)
}

// CreateDir mocks the CreateDir method.
func (m *MockFileStore) CreateDir(path string) error {
	return m.Called(path).Error(0)
}

// DeleteDir mocks the DeleteDir method.
func (m *MockFileStore) DeleteDir(path string, recursive bool) error {
	return m.Called(path, recursive).Error(0)
}

// ListFiles mocks the ListFiles method.
func (m *MockFileStore) ListFiles(dir string) ([]string, error) {
	args := m.Called(dir)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

// Move mocks the Move method.
func (m *MockFileStore) Move(src, dst string) error {
	return m.Called(src, dst).Error(0)
}

// FakeConn is a recording engine.Conn. Every statement is stored in order; ExecErr, when
// set, is returned for statements for which FailOn returns true (or for all statements if
// FailOn is nil).
type FakeConn struct {
	mu      sync.Mutex
	queries []string
	closed  int

	ExecErr error
	FailOn  func(query string) bool
}

var _ engine.Conn = (*FakeConn)(nil)

// ExecContext implements engine.Conn.
func (c *FakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.ExecErr != nil && (c.FailOn == nil || c.FailOn(query)) {
		return nil, c.ExecErr
	}
	return driver.RowsAffected(1), nil
}

// Close implements engine.Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Queries returns a copy of every statement executed so far.
func (c *FakeConn) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.queries))
	copy(out, c.queries)
	return out
}

// CloseCount returns how many times Close was called.
func (c *FakeConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Opener returns an engine.Opener that always hands out c.
func (c *FakeConn) Opener() engine.Opener {
	return func(context.Context) (engine.Conn, error) { return c, nil }
}
