package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/service"
	"github.com/hoofs-app/hoofs/internal/state"
)

const testAdminToken = "test-admin-token"

type checkerStub struct {
	mu    sync.Mutex
	calls []int64
	ev    model.Event
	err   error
}

func (c *checkerStub) CheckNow(_ context.Context, numero int64) (model.Event, error) {
	c.mu.Lock()
	c.calls = append(c.calls, numero)
	c.mu.Unlock()
	return c.ev, c.err
}

type adapterStub struct {
	name    string
	enabled bool
	result  notify.Result
}

func (a *adapterStub) Name() string  { return a.name }
func (a *adapterStub) Enabled() bool { return a.enabled }

func (a *adapterStub) SendOpening(context.Context, model.UserProfile, model.Event) notify.Result {
	return a.result
}

func (a *adapterStub) SendTest(context.Context, model.UserProfile) notify.Result {
	return a.result
}

type apiFixture struct {
	srv     *Server
	svc     *service.AdminService
	repo    *state.Repo
	metrics *metrics.Manager
	checker *checkerStub
	push    *adapterStub
	email   *adapterStub
}

func newTestServer(t *testing.T) *apiFixture {
	t.Helper()
	repo, closer, err := state.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { closer.Close() })

	checker := &checkerStub{}
	push := &adapterStub{name: model.ChannelPush, enabled: true, result: notify.Result{OK: true, Detail: "delivered to 1 recipient(s)"}}
	email := &adapterStub{name: model.ChannelEmail, enabled: true, result: notify.Result{OK: true, Detail: "msg_1"}}
	mgr := metrics.NewManager(repo, 3600)

	svc := &service.AdminService{
		Repo:    repo,
		Engine:  engine.New(),
		Metrics: mgr,
		Checker: checker,
		Push:    push,
		Email:   email,
	}
	return &apiFixture{
		srv:     NewServer(0, testAdminToken, svc, 1<<20),
		svc:     svc,
		repo:    repo,
		metrics: mgr,
		checker: checker,
		push:    push,
		email:   email,
	}
}

// do issues an authenticated request against the server handler.
func (fx *apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	fx.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
}

func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, rec, status)
	var body ErrorResponse
	unmarshalBody(t, rec, &body)
	if body.Error.Code != code {
		t.Fatalf("error code: got %q, want %q", body.Error.Code, code)
	}
}

func seedEvent(t *testing.T, repo *state.Repo, numero int64, name, start, end string, status model.EventStatus, isOpen bool) {
	t.Helper()
	now := time.Now().UnixNano()
	patch := model.EventPatch{Name: name, StartDate: start, EndDate: end, Venue: "Fontainebleau", Discipline: "CSO"}
	if _, err := repo.UpsertEvent(numero, patch, now); err != nil {
		t.Fatalf("upsert event %d: %v", numero, err)
	}
	openedAt := int64(0)
	if isOpen {
		openedAt = now
	}
	if err := repo.SetEventStatus(numero, status, isOpen, openedAt, now); err != nil {
		t.Fatalf("set status %d: %v", numero, err)
	}
}
