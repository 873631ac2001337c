package exec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/state"
	"github.com/danslapman/kolibri-go/internal/stub"
)

func mustStub(t *testing.T, raw string) *models.Stub {
	t.Helper()
	var s models.Stub
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("invalid stub fixture: %v", err)
	}
	return &s
}

func TestExecRawResponse(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "GET", "path": "/echo",
		"request": {"mode": "no_body"},
		"response": {"mode": "raw", "code": 200, "body": "hi"}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	resp, err := h.Exec(context.Background(), stub.Request{Method: models.MethodGet, Path: "/echo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 200 || string(resp.Body) != "hi" {
		t.Errorf("resp = %#v", resp)
	}
}

func TestExecTemplatedJSONResponseUsesPathParts(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "GET", "path_pattern": "^/users/(?P<id>\\d+)$",
		"request": {"mode": "no_body"},
		"response": {"mode": "json", "code": 200, "body": {"id": "${pathParts.id}"}, "is_template": true}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	resp, err := h.Exec(context.Background(), stub.Request{Method: models.MethodGet, Path: "/users/42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["id"] != "42" {
		t.Errorf("body = %#v", body)
	}
}

func TestExecDoesNotMutateStubTemplateAcrossRequests(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "GET", "path_pattern": "^/users/(?P<id>\\d+)$",
		"request": {"mode": "no_body"},
		"response": {"mode": "json", "code": 200, "body": {"id": "${pathParts.id}"}, "is_template": true}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	if _, err := h.Exec(context.Background(), stub.Request{Method: models.MethodGet, Path: "/users/1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp2, err := h.Exec(context.Background(), stub.Request{Method: models.MethodGet, Path: "/users/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(resp2.Body, &body)
	if body["id"] != "2" {
		t.Errorf("expected second request's template to substitute independently, got %#v", body)
	}
}

func TestExecPersistsIntoNewState(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "POST", "path": "/register",
		"request": {"mode": "json", "body": {"name": "peka"}},
		"persist": {"name": "${req.name}"},
		"response": {"mode": "raw", "code": 200, "body": "ok"}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	_, err := h.Exec(context.Background(), stub.Request{
		Method: models.MethodPost, Path: "/register",
		Body: stub.RequestBody{Present: true, Raw: `{"name": "peka"}`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := st.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one state to be created, got %d", len(snap))
	}
	data := snap[0].Data.(map[string]interface{})
	if data["name"] != "peka" {
		t.Errorf("persisted state = %#v", data)
	}
}

func TestPersistMergeIsRecursiveOverObjects(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "POST", "path": "/bump",
		"state": {"a.c": {"exists": true}},
		"persist": {"a.b": "2"},
		"request": {"mode": "no_body"},
		"response": {"mode": "raw", "code": 200, "body": "ok"}
	}`)
	st := state.New()
	st.Upsert("", map[string]interface{}{"a": map[string]interface{}{"c": float64(1)}})
	h := New(stub.New([]*models.Stub{s}, st), st)

	_, err := h.Exec(context.Background(), stub.Request{Method: models.MethodPost, Path: "/bump"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := st.Snapshot()
	data := snap[0].Data.(map[string]interface{})
	a := data["a"].(map[string]interface{})
	if a["b"] != "2" || a["c"] != float64(1) {
		t.Errorf("expected merged object with both b and c, got %#v", a)
	}
}

func TestExecRespectsResponseDelay(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "GET", "path": "/slow",
		"request": {"mode": "no_body"},
		"response": {"mode": "raw", "code": 200, "body": "ok", "delay": 20}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	start := time.Now()
	if _, err := h.Exec(context.Background(), stub.Request{Method: models.MethodGet, Path: "/slow"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected Exec to honor the stub's response delay")
	}
}

func TestExecCancellationDuringDelayReturnsContextError(t *testing.T) {
	s := mustStub(t, `{
		"scope": "persistent", "name": "x", "method": "GET", "path": "/slow",
		"request": {"mode": "no_body"},
		"response": {"mode": "raw", "code": 200, "body": "ok", "delay": 500}
	}`)
	st := state.New()
	h := New(stub.New([]*models.Stub{s}, st), st)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Exec(ctx, stub.Request{Method: models.MethodGet, Path: "/slow"})
	if err == nil {
		t.Error("expected a context error when cancelled mid-delay")
	}
}
