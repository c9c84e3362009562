package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/metrics"
	"github.com/meikuraledutech/tree/sqlite"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := tree.NewEngine(store, tree.WithLogger(logger), tree.WithObserver(metrics.New(reg)))
	return newApp(store, engine, reg, logger)
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestNodeLifecycle(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, http.MethodPost, "/nodes", `{"id": "a", "data": {"title": "A"}}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, app, http.MethodPost, "/nodes/a/children", `{"children": [{"id": "b"}, {"id": "c"}]}`)
	require.Equal(t, http.StatusCreated, status)
	var placed []tree.Node
	require.NoError(t, json.Unmarshal(body, &placed))
	require.Len(t, placed, 2)
	assert.Equal(t, 1, placed[1].Position)

	status, _ = do(t, app, http.MethodPost, "/nodes/root/children", `{"children": [{"id": "z"}]}`)
	require.Equal(t, http.StatusCreated, status)

	status, body = do(t, app, http.MethodPut, "/nodes/c/move", `{"parent_id": null, "position": 0}`)
	require.Equal(t, http.StatusOK, status)
	var moved tree.Node
	require.NoError(t, json.Unmarshal(body, &moved))
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 0, moved.Position)

	status, body = do(t, app, http.MethodGet, "/nodes/root/children", "")
	require.Equal(t, http.StatusOK, status)
	var roots []tree.Node
	require.NoError(t, json.Unmarshal(body, &roots))
	got := make([]string, 0, len(roots))
	for _, n := range roots {
		got = append(got, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "z"}, got)

	status, body = do(t, app, http.MethodGet, "/nodes/b/depth", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id": "b", "depth": 1}`, string(body))

	status, body = do(t, app, http.MethodGet, "/tree?root=a", "")
	require.Equal(t, http.StatusOK, status)
	var forest []tree.TreeNode
	require.NoError(t, json.Unmarshal(body, &forest))
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "b", forest[0].Children[0].ID)

	status, body = do(t, app, http.MethodDelete, "/nodes/a?hard=true&subtree=true&with_self=true", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deleted": 2}`, string(body))

	status, _ = do(t, app, http.MethodGet, "/nodes/b", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, http.MethodGet, "/check", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"violations": []}`, string(body))
}

func TestErrorStatus(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodPost, "/nodes", `{"id": "a"}`)
	do(t, app, http.MethodPost, "/nodes", `{"id": "b", "parent_id": "a"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"cycle", http.MethodPut, "/nodes/a/move", `{"parent_id": "b"}`, http.StatusUnprocessableEntity},
		{"self parent", http.MethodPut, "/nodes/a/move", `{"parent_id": "a"}`, http.StatusUnprocessableEntity},
		{"missing parent", http.MethodPut, "/nodes/a/move", `{"parent_id": "ghost"}`, http.StatusNotFound},
		{"missing node", http.MethodPut, "/nodes/ghost/move", `{"parent_id": null}`, http.StatusNotFound},
		{"duplicate id", http.MethodPost, "/nodes", `{"id": "a"}`, http.StatusConflict},
		{"bad body", http.MethodPost, "/nodes", `{`, http.StatusBadRequest},
		{"bad range", http.MethodDelete, "/nodes/a/children?from=x", "", http.StatusBadRequest},
		{"depth of missing", http.MethodGet, "/nodes/ghost/depth", "", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := do(t, app, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodPost, "/nodes/root/children", `{"children": [{"id": "a"}, {"id": "b"}, {"id": "c"}]}`)

	status, _ := do(t, app, http.MethodDelete, "/nodes/a", "")
	require.Equal(t, http.StatusNoContent, status)

	status, body := do(t, app, http.MethodPost, "/nodes/a/restore", "")
	require.Equal(t, http.StatusOK, status)
	var restored tree.Node
	require.NoError(t, json.Unmarshal(body, &restored))
	assert.Equal(t, 2, restored.Position)
	assert.Nil(t, restored.DeletedAt)

	status, body = do(t, app, http.MethodPost, "/nodes/b/siblings", `{"id": "d", "position": 0}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Contains(t, string(body), `"ref":{"id":"b","parent_id":null,"position":1}`)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodPost, "/nodes", `{"id": "a"}`)

	status, body := do(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `tree_operations_total{op="create",outcome="ok"} 1`)
}
