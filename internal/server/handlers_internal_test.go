package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/render/dot"
	"github.com/mickamy/pgdot/internal/store"
	"github.com/mickamy/pgdot/test"
)

func TestRenderSVGFailureLeavesNoRecord(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := New(Options{Store: st, Logger: zerolog.Nop()})
	srv.renderSVG = func(context.Context, io.Writer, *graph.Graph, dot.Options) error {
		return errs.Wrap(errors.New("layout crashed"), errs.CodeRenderFailed, "image: render svg")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/render?format=svg", bytes.NewReader(test.ReadSample(t, "simple.json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Render-ID"))
	assert.Empty(t, rec.Header().Get("Location"))

	records, err := st.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	srv := New(Options{Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusOK, map[string]float64{"cost": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errs.CodeInternal, body.Code)
	assert.Contains(t, body.Message, "encode response")
}
