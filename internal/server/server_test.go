package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/identity"
	"github.com/mohammad-safakhou/aide/internal/orchestrator"
	"github.com/mohammad-safakhou/aide/internal/store"
)

func newTestServer(t *testing.T) (*echo.Echo, store.RouterSet) {
	t.Helper()
	now := func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	reg := prometheus.NewRegistry()
	routers, err := store.NewRouterSet(store.Options{DataDir: t.TempDir(), Logger: zerolog.Nop(), Metrics: store.NewMetrics(reg)})
	if err != nil {
		t.Fatalf("routers: %v", err)
	}
	orch := orchestrator.New(orchestrator.Options{
		Agents:    agent.NewSet(routers, agent.NewInterpreter(nil, now), zerolog.Nop(), now),
		Identity:  identity.New("default_user"),
		Threshold: 0.5,
		Logger:    zerolog.Nop(),
		Now:       now,
	})
	e := New(Options{Assistant: &AssistantHandler{Assistant: orch}, Gatherer: reg, Logger: zerolog.Nop()})
	return e, routers
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAssistantRoutesQuery(t *testing.T) {
	e, routers := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/assistant", `{"instruction":"I spent $20 on lunch today","user_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	reply, _ := decode(t, rec)["reply"].(string)
	if !strings.Contains(reply, "Added expense: $20.00 on food") {
		t.Fatalf("unexpected reply %q", reply)
	}
	res, err := routers[store.Expenses].List(context.Background(), "alice", store.Filter{})
	if err != nil || len(res.Records) != 1 {
		t.Fatalf("expected one stored expense for alice, got %v %v", res.Records, err)
	}
}

func TestAssistantRejectsEmptyInstruction(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/assistant", `{"instruction":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decode(t, rec)["error"]; msg != "instruction is required" {
		t.Fatalf("unexpected error body %v", msg)
	}
}

func TestAgentEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/agents/notes", `{"instruction":"add a note to buy milk for user: bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if reply, _ := decode(t, rec)["reply"].(string); !strings.Contains(reply, "Added note: [ ] buy milk") {
		t.Fatalf("unexpected reply %q", reply)
	}

	// alias names reach the same agent, and bob's note is his alone
	rec = do(e, http.MethodPost, "/api/agents/notes", `{"instruction":"show my notes","user_id":"bob"}`)
	if reply, _ := decode(t, rec)["reply"].(string); !strings.Contains(reply, "buy milk") {
		t.Fatalf("bob should see his note: %q", reply)
	}
	rec = do(e, http.MethodPost, "/api/agents/notes", `{"instruction":"show my notes","user_id":"alice"}`)
	if reply, _ := decode(t, rec)["reply"].(string); strings.Contains(reply, "buy milk") {
		t.Fatalf("alice must not see bob's note: %q", reply)
	}

	rec = do(e, http.MethodPost, "/api/agents/health_diet", `{"instruction":"show my goals","user_id":"bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("alias: expected 200, got %d", rec.Code)
	}
}

func TestAgentEndpointUnknownDomain(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/agents/travel", `{"instruction":"book a flight"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListAgents(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	agents, _ := decode(t, rec)["agents"].([]interface{})
	if len(agents) != 4 || agents[0] != agent.DomainExpenses {
		t.Fatalf("unexpected agents %v", agents)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	e, _ := newTestServer(t)
	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	do(e, http.MethodPost, "/api/assistant", `{"instruction":"add a note to stretch"}`)
	rec := do(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "aide_storage_operations_total") {
		t.Fatalf("storage counters missing from metrics output")
	}
}

func TestAssistantHandlerDirect(t *testing.T) {
	e, _ := newTestServer(t)
	h := &AssistantHandler{Assistant: stubAssistant{}}
	req := httptest.NewRequest(http.MethodPost, "/api/agents/x", strings.NewReader(`{"instruction":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("domain")
	ctx.SetParamValues("x")
	if err := h.agent(ctx); err != nil {
		t.Fatalf("agent: %v", err)
	}
	if reply, _ := decode(t, rec)["reply"].(string); reply != "x:hi:" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

type stubAssistant struct{}

func (stubAssistant) RouteAs(_ context.Context, q, user string) (string, error) {
	return q + ":" + user, nil
}

func (stubAssistant) Ask(_ context.Context, domain, q, user string) (string, error) {
	return domain + ":" + q + ":" + user, nil
}

func (stubAssistant) Domains() []string { return nil }
