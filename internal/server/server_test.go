package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/config"
	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/metrics"
	"github.com/mickamy/pgdot/internal/server"
	"github.com/mickamy/pgdot/internal/store"
	"github.com/mickamy/pgdot/test"
)

func newServer(t *testing.T, withStore bool) *server.Server {
	t.Helper()
	config.Use(config.Default())

	opts := server.Options{
		Metrics: metrics.NewPrometheusCollector(prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	}
	if withStore {
		st, err := store.Open(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		opts.Store = st
	}
	return server.New(opts)
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	return body.Code
}

func TestHealth(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestRenderDOT(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/render", test.ReadSample(t, "simple.json"), "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vnd.graphviz; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("X-Render-ID"))
	cg := test.ParseDOT(t, rec.Body.String())
	name, err := cg.Name()
	require.NoError(t, err)
	assert.Equal(t, "explain", name)
	assert.Contains(t, test.DOTEdges(t, cg), "node0 -> node1")
}

func TestRenderJSON(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/render?format=json", test.ReadSample(t, "simple.json"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Nodes []struct {
			ID          int    `json:"id"`
			Type        string `json:"type"`
			TimePercent *int   `json:"time_percent"`
			Color       string `json:"color"`
		} `json:"nodes"`
		Edges   [][2]int `json:"edges"`
		MaxCost float64  `json:"max_cost"`
		DOT     string   `json:"dot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Nodes, 5)
	assert.Len(t, body.Edges, 4)
	assert.Equal(t, 40.0, body.MaxCost)
	assert.Equal(t, "Sort", body.Nodes[0].Type)
	require.NotNil(t, body.Nodes[0].TimePercent)
	assert.Equal(t, 27, *body.Nodes[0].TimePercent)
	assert.Equal(t, "#c20a0a", body.Nodes[2].Color)
	assert.Contains(t, body.DOT, "digraph explain")
}

func TestRenderYAML(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/render", test.ReadSample(t, "plain.yaml"), "application/yaml; charset=utf-8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Seq Scan")
}

func TestRenderSVG(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/render?format=svg", test.ReadSample(t, "simple.json"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{
			name:   "malformed json",
			target: "/api/render",
			body:   `[{"Plan": `,
			status: http.StatusBadRequest,
			code:   errs.CodeMalformedInput,
		},
		{
			name:   "missing plan",
			target: "/api/render",
			body:   `[{"Execution Time": 1}]`,
			status: http.StatusBadRequest,
			code:   errs.CodeMalformedInput,
		},
		{
			name:   "non-finite cost",
			target: "/api/render",
			body:   `[{"Plan": {"Node Type": "Result", "Total Cost": "NaN", "Plan Rows": 1}}]`,
			status: http.StatusBadRequest,
			code:   errs.CodeMalformedInput,
		},
		{
			name:   "unsupported format",
			target: "/api/render?format=gif",
			body:   `[]`,
			status: http.StatusBadRequest,
			code:   errs.CodeInvalidRequest,
		},
	}

	srv := newServer(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), http.MethodPost, tt.target, []byte(tt.body), "application/json")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec))
		})
	}
}

func TestRenderBodyLimit(t *testing.T) {
	config.Use(config.Default())
	srv := server.New(server.Options{Logger: zerolog.Nop(), MaxBodyBytes: 16})
	rec := do(t, srv.Handler(), http.MethodPost, "/api/render", test.ReadSample(t, "simple.json"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.CodeInvalidRequest, decodeError(t, rec))
}

func TestArchive(t *testing.T) {
	srv := newServer(t, true)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/render?name=orders", test.ReadSample(t, "cte.json"), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := rec.Header().Get("X-Render-ID")
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/renders/"+id, rec.Header().Get("Location"))
	posted := rec.Body.String()

	rec = do(t, h, http.MethodGet, "/api/renders", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Nodes         int      `json:"nodes"`
		ExecutionTime *float64 `json:"execution_time"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "orders", list[0].Name)
	assert.Equal(t, 5, list[0].Nodes)
	require.NotNil(t, list[0].ExecutionTime)
	assert.Equal(t, 12.5, *list[0].ExecutionTime)

	rec = do(t, h, http.MethodGet, "/api/renders/"+id+"?format=dot", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, posted, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/renders/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ID  string `json:"id"`
		DOT string `json:"dot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, posted, got.DOT)
}

func TestArchiveErrors(t *testing.T) {
	srv := newServer(t, true)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/renders/00000000-0000-0000-0000-000000000000", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.CodeNotFound, decodeError(t, rec))

	rec = do(t, h, http.MethodGet, "/api/renders?limit=many", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.CodeInvalidRequest, decodeError(t, rec))

	rec = do(t, h, http.MethodGet, "/api/renders", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestArchiveDisabled(t *testing.T) {
	srv := newServer(t, false)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/renders", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.CodeNotFound, decodeError(t, rec))
}

func TestMetrics(t *testing.T) {
	srv := newServer(t, false)
	h := srv.Handler()

	do(t, h, http.MethodGet, "/healthz", nil, "")
	do(t, h, http.MethodPost, "/api/render", test.ReadSample(t, "simple.json"), "")

	rec := do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `pgdot_http_requests_total{code="200",route="/healthz"} 1`)
	assert.Contains(t, out, `pgdot_http_requests_total{code="200",route="/api/render"} 1`)
	assert.Contains(t, out, "pgdot_render_duration_seconds_count 1")
	assert.Contains(t, out, "pgdot_plan_nodes 5")
	assert.NotContains(t, out, "pgdot_plan_nodes_bucket")
}

func TestMetricsDisabled(t *testing.T) {
	srv := server.New(server.Options{Logger: zerolog.Nop()})
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
