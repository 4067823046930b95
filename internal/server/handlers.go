package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/insight"
	"github.com/mickamy/pgdot/internal/palette"
	"github.com/mickamy/pgdot/internal/parser"
	"github.com/mickamy/pgdot/internal/render/dot"
	"github.com/mickamy/pgdot/internal/render/image"
	"github.com/mickamy/pgdot/internal/store"
)

const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"

	dotContentType = "text/vnd.graphviz; charset=utf-8"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type nodeView struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Info     string   `json:"info,omitempty"`
	Cost     float64  `json:"cost"`
	Percent  float64  `json:"cost_percent"`
	Time     *float64 `json:"time,omitempty"`
	TimePct  *int     `json:"time_percent,omitempty"`
	Executed bool     `json:"executed"`
	Cluster  string   `json:"cluster,omitempty"`
	Color    string   `json:"color"`
}

type renderView struct {
	ID       string            `json:"id,omitempty"`
	Nodes    []nodeView        `json:"nodes"`
	Edges    [][2]int          `json:"edges"`
	Clusters []graph.Cluster   `json:"clusters"`
	MaxCost  float64           `json:"max_cost"`
	RootTime *float64          `json:"root_time,omitempty"`
	Insights []insight.Message `json:"insights"`
	DOT      string            `json:"dot"`
}

type recordView struct {
	store.Record
	DOT string `json:"dot,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = formatDOT
	}
	if format != formatDOT && format != formatSVG && format != formatJSON {
		s.writeError(w, errs.Newf(errs.CodeInvalidRequest, "unsupported format %q (expected dot, svg or json)", format))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, errs.Newf(errs.CodeInvalidRequest, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, errs.Wrap(err, errs.CodeMalformedInput, "read request body"))
		return
	}

	timer := s.collector.StartTimer()
	explain, err := parser.Parse(bytes.NewReader(body), parser.Options{Format: inputFormat(r), Strict: s.strict})
	if err != nil {
		s.writeError(w, err)
		return
	}
	g, err := graph.Build(explain)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := dot.Options{GraphID: s.graphID}
	doc, err := dot.String(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var svg bytes.Buffer
	if format == formatSVG {
		if err := s.renderSVG(r.Context(), &svg, g, opts); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.collector.RecordHistogram("render_duration_seconds", timer.Stop())
	s.collector.RecordGauge("plan_nodes", float64(len(g.Nodes)))

	status := http.StatusOK
	var id string
	if s.store != nil {
		rec, err := s.store.Save(r.Context(), store.Record{
			Name:          r.URL.Query().Get("name"),
			Plan:          body,
			DOT:           doc,
			Nodes:         len(g.Nodes),
			MaxCost:       g.MaxCost,
			ExecutionTime: g.RootTime,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		id = rec.ID
		w.Header().Set("X-Render-ID", id)
		w.Header().Set("Location", "/api/renders/"+id)
		status = http.StatusCreated
	}

	switch format {
	case formatJSON:
		view := buildRenderView(g, doc)
		view.ID = id
		s.writeJSON(w, status, view)
	case formatSVG:
		s.writeSVG(w, status, svg.Bytes())
	default:
		w.Header().Set("Content-Type", dotContentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, doc)
	}
}

func (s *Server) handleListRenders(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errs.New(errs.CodeNotFound, "render archive is disabled"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, errs.Newf(errs.CodeInvalidRequest, "invalid limit %q", raw))
			return
		}
		limit = n
	}
	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRender(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errs.New(errs.CodeNotFound, "render archive is disabled"))
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", formatJSON:
		s.writeJSON(w, http.StatusOK, recordView{Record: rec, DOT: rec.DOT})
	case formatDOT:
		w.Header().Set("Content-Type", dotContentType)
		_, _ = io.WriteString(w, rec.DOT)
	case formatSVG:
		var svg bytes.Buffer
		if err := image.RenderDOT(r.Context(), &svg, []byte(rec.DOT), image.SVG); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSVG(w, http.StatusOK, svg.Bytes())
	default:
		s.writeError(w, errs.Newf(errs.CodeInvalidRequest, "unsupported format %q", r.URL.Query().Get("format")))
	}
}

func (s *Server) writeSVG(w http.ResponseWriter, status int, svg []byte) {
	w.Header().Set("Content-Type", image.SVG.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(svg)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", code).Msg("Request failed")
	}

	message := err.Error()
	var coded *errs.Error
	if errors.As(err, &coded) {
		message = coded.Message
		if coded.Cause != nil {
			message += ": " + coded.Cause.Error()
		}
	}
	s.writeJSON(w, status, errorBody{Code: code, Message: message})
}

func statusOf(code string) int {
	switch code {
	case errs.CodeMalformedInput, errs.CodeInvalidRequest:
		return http.StatusBadRequest
	case errs.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func inputFormat(r *http.Request) parser.Format {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return parser.FormatJSON
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return parser.FormatYAML
	default:
		return parser.FormatJSON
	}
}

func buildRenderView(g *graph.Graph, doc string) renderView {
	view := renderView{
		Nodes:    make([]nodeView, 0, len(g.Nodes)),
		Edges:    make([][2]int, 0, len(g.Edges)),
		Clusters: g.Clusters,
		MaxCost:  g.MaxCost,
		RootTime: g.RootTime,
		Insights: insight.BuildMessages(g),
		DOT:      doc,
	}
	if view.Clusters == nil {
		view.Clusters = []graph.Cluster{}
	}
	if view.Insights == nil {
		view.Insights = []insight.Message{}
	}
	for _, n := range g.Nodes {
		share := g.CostPercent(n)
		nv := nodeView{
			ID:       n.ID,
			Type:     n.Type,
			Info:     n.Info,
			Cost:     n.Cost,
			Percent:  share * 100,
			Time:     n.Time,
			Executed: n.Executed,
			Cluster:  n.Cluster,
			Color:    palette.CostColor(share),
		}
		if p, ok := g.TimePercent(n); ok {
			nv.TimePct = &p
		}
		view.Nodes = append(view.Nodes, nv)
	}
	for _, e := range g.Edges {
		view.Edges = append(view.Edges, [2]int{e.Parent, e.Child})
	}
	return view
}

// writeJSON encodes v before touching w so an encoding failure still yields a
// well-formed error response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorBody{Code: errs.CodeInternal, Message: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}
