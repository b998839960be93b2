package graph

import (
	"context"
	"sync"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// MockCall represents a recorded method call on the mock graph client.
type MockCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// MockClient is a mock implementation of Client for testing.
// It provides configurable responses and tracks all method calls for verification.
type MockClient struct {
	mu sync.RWMutex

	// State
	connected    bool
	healthStatus types.HealthStatus
	calls        []MockCall

	// Configurable responses
	queryResults  []QueryResult
	writeResults  []QueryResult
	vectorMatches [][]VectorMatch
	explainPlan   Plan
	queryError    error
	writeError    error
	vectorError   error
	connectError  error
	closeError    error
}

// NewMockClient creates a new mock graph client for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		connected:    false,
		healthStatus: types.NewHealthStatus(types.HealthStateHealthy, "mock graph client"),
		calls:        make([]MockCall, 0),
	}
}

// Connect records the call and simulates connection.
func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Connect")

	if m.connectError != nil {
		return m.connectError
	}

	m.connected = true
	return nil
}

// Close records the call and simulates disconnection.
func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Close")

	if m.closeError != nil {
		return m.closeError
	}

	m.connected = false
	return nil
}

// VerifyConnectivity records the call and succeeds while connected.
func (m *MockClient) VerifyConnectivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("VerifyConnectivity")

	if !m.connected {
		return types.NewError(ErrCodeGraphConnectionClosed, "not connected")
	}
	return nil
}

// Health records the call and returns the configured health status.
func (m *MockClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Health")

	if !m.connected {
		return types.Unhealthy("not connected")
	}

	return m.healthStatus
}

// Query records the call and returns the next configured query result (FIFO).
func (m *MockClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Query", cypher, params)

	if !m.connected {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed, "not connected")
	}

	if m.queryError != nil {
		return QueryResult{}, m.queryError
	}

	if len(m.queryResults) > 0 {
		result := m.queryResults[0]
		m.queryResults = m.queryResults[1:]
		return result, nil
	}

	return QueryResult{
		Records: []map[string]any{},
		Columns: []string{},
	}, nil
}

// WriteQuery records the call and returns the next configured write result (FIFO).
func (m *MockClient) WriteQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("WriteQuery", cypher, params)

	if !m.connected {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed, "not connected")
	}

	if m.writeError != nil {
		return QueryResult{}, m.writeError
	}

	if len(m.writeResults) > 0 {
		result := m.writeResults[0]
		m.writeResults = m.writeResults[1:]
		return result, nil
	}

	return QueryResult{
		Records: []map[string]any{},
		Columns: []string{},
	}, nil
}

// VectorQuery records the call and returns the next configured match set (FIFO).
func (m *MockClient) VectorQuery(ctx context.Context, index string, embedding []float64, k int) ([]VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("VectorQuery", index, embedding, k)

	if !m.connected {
		return nil, types.NewError(ErrCodeGraphConnectionClosed, "not connected")
	}

	if m.vectorError != nil {
		return nil, m.vectorError
	}

	if len(m.vectorMatches) > 0 {
		matches := m.vectorMatches[0]
		m.vectorMatches = m.vectorMatches[1:]
		if len(matches) > k {
			matches = matches[:k]
		}
		return matches, nil
	}

	return []VectorMatch{}, nil
}

// Explain records the call and returns the configured plan.
func (m *MockClient) Explain(ctx context.Context, cypher string, params map[string]any) (Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Explain", cypher, params)

	if !m.connected {
		return Plan{}, types.NewError(ErrCodeGraphConnectionClosed, "not connected")
	}

	if m.queryError != nil {
		return Plan{}, m.queryError
	}

	return m.explainPlan, nil
}

// SetExplainPlan configures what Explain() should return.
func (m *MockClient) SetExplainPlan(plan Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainPlan = plan
}

// record appends a call entry. Caller must hold the lock.
func (m *MockClient) record(method string, args ...interface{}) {
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// AddQueryResult adds a read query result to the queue.
func (m *MockClient) AddQueryResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResults = append(m.queryResults, result)
}

// AddWriteResult adds a write query result to the queue.
func (m *MockClient) AddWriteResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, result)
}

// AddVectorMatches adds a vector match set to the queue.
func (m *MockClient) AddVectorMatches(matches []VectorMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorMatches = append(m.vectorMatches, matches)
}

// SetHealthStatus configures what Health() should return.
func (m *MockClient) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// SetConnectError configures Connect() to return an error.
func (m *MockClient) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

// SetCloseError configures Close() to return an error.
func (m *MockClient) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// SetQueryError configures Query() to return an error.
func (m *MockClient) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryError = err
}

// SetWriteError configures WriteQuery() to return an error.
func (m *MockClient) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeError = err
}

// SetVectorError configures VectorQuery() to return an error.
func (m *MockClient) SetVectorError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorError = err
}

// GetCalls returns all recorded method calls.
func (m *MockClient) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// GetCallsByMethod returns all calls to a specific method.
func (m *MockClient) GetCallsByMethod(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, 0)
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// CallCount returns the total number of method calls.
func (m *MockClient) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// IsConnected returns whether the mock is in connected state.
func (m *MockClient) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Reset clears all recorded calls and resets the mock to its initial state.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.healthStatus = types.NewHealthStatus(types.HealthStateHealthy, "mock graph client")
	m.calls = make([]MockCall, 0)
	m.queryResults = nil
	m.writeResults = nil
	m.vectorMatches = nil
	m.explainPlan = Plan{}
	m.queryError = nil
	m.writeError = nil
	m.vectorError = nil
	m.connectError = nil
	m.closeError = nil
}
