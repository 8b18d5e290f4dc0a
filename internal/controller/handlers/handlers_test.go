package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"agentplane/internal/agentclient"
	"agentplane/internal/controller/middleware"
	"agentplane/internal/dispatcher"
	"agentplane/internal/store"

	"github.com/google/uuid"
)

// Mock transaction
type mockTx struct {
	commits   int
	rollbacks int
	commitErr error
}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error {
	m.commits++
	return m.commitErr
}

func (m *mockTx) Rollback() error {
	m.rollbacks++
	return nil
}

// Mock Store
type mockStore struct {
	tx         *mockTx
	beginTxErr error
	pingErr    error

	// Org hooks
	createOrgErr  error
	getOrgResp    *store.Org
	getOrgErr     error
	apiKeyResp    string
	apiKeyErr     error
	capturedOrg   *store.Org
	capturedKey   *store.APIKey

	// Execution hooks
	createExecErr   error
	capturedExec    *store.Execution
	getExecResp     *store.Execution
	getExecErr      error
	listResp        []store.Execution
	listErr         error
	capturedModule  string
	capturedLimit   int
	transitionErr   error

	// Queue hooks
	enqueueErr error
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	if m.tx == nil {
		m.tx = &mockTx{}
	}
	return m.tx, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateOrg(ctx context.Context, org *store.Org, key *store.APIKey) error {
	m.capturedOrg = org
	m.capturedKey = key
	return m.createOrgErr
}

func (m *mockStore) GetOrgByID(ctx context.Context, id uuid.UUID) (*store.Org, error) {
	return m.getOrgResp, m.getOrgErr
}

func (m *mockStore) GetOrgByAPIKeyHash(ctx context.Context, hash string) (*store.Org, error) {
	return m.getOrgResp, m.getOrgErr
}

func (m *mockStore) GetAPIKeyByOrg(ctx context.Context, orgID uuid.UUID) (string, error) {
	return m.apiKeyResp, m.apiKeyErr
}

func (m *mockStore) CreateExecution(ctx context.Context, tx store.DBTransaction, execution *store.Execution) error {
	m.capturedExec = execution
	return m.createExecErr
}

func (m *mockStore) GetExecution(ctx context.Context, id, orgID uuid.UUID) (*store.Execution, error) {
	return m.getExecResp, m.getExecErr
}

func (m *mockStore) ListExecutionsByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]store.Execution, error) {
	m.capturedLimit = limit
	return m.listResp, m.listErr
}

func (m *mockStore) ListExecutionsByModule(ctx context.Context, moduleID string, orgID uuid.UUID, limit int) ([]store.Execution, error) {
	m.capturedModule = moduleID
	m.capturedLimit = limit
	return m.listResp, m.listErr
}

func (m *mockStore) TransitionExecution(ctx context.Context, id, orgID uuid.UUID, status store.ExecutionStatus, output json.RawMessage, errMsg *string) error {
	return m.transitionErr
}

func (m *mockStore) Enqueue(ctx context.Context, tx store.DBTransaction, executionID, orgID uuid.UUID, payload json.RawMessage, visibleAfter time.Time) (int64, error) {
	return 1, m.enqueueErr
}

func (m *mockStore) Dequeue(ctx context.Context, limit int) ([]store.QueueItem, error) {
	return nil, nil
}

func (m *mockStore) Complete(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID) error {
	return nil
}

func (m *mockStore) Fail(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID, errMsg string, permanent bool) error {
	return nil
}

func (m *mockStore) SetVisibleAfter(ctx context.Context, tx store.DBTransaction, executionID uuid.UUID, visibleAfter time.Time) error {
	return nil
}

func (m *mockStore) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

// mockSubmitter records submitted jobs.
type mockSubmitter struct {
	jobs []dispatcher.Job
	err  error
}

func (m *mockSubmitter) Submit(ctx context.Context, tx store.DBTransaction, job dispatcher.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// mockCache is an in-memory ResultCache.
type mockCache struct {
	data map[string]json.RawMessage
	sets int
	gets int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string]json.RawMessage{}}
}

func (m *mockCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	m.gets++
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(ctx context.Context, key string, value json.RawMessage) {
	m.sets++
	m.data[key] = value
}

func (m *mockCache) Delete(ctx context.Context, key string) {
	delete(m.data, key)
}

// mockBackend returns a canned health report.
type mockBackend struct {
	health agentclient.Health
}

func (m *mockBackend) HealthCheck(ctx context.Context) agentclient.Health {
	return m.health
}

// withOrg attaches an authenticated org to the request, the way the auth
// middleware would.
func withOrg(r *http.Request, org *store.Org) *http.Request {
	return r.WithContext(middleware.NewContextWithOrg(r.Context(), org))
}

func testOrg() *store.Org {
	return &store.Org{ID: uuid.New(), Name: "acme", CreatedAt: time.Now()}
}
