package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/lens"
	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/paths"
	"github.com/ritzau/relgraph/pkg/session"
)

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Error string `json:"error"`
}

// pathResponse wraps a shortest path lookup. A missing path is not an
// error: Found is false and Nodes is empty.
type pathResponse struct {
	Found bool     `json:"found"`
	Nodes []string `json:"nodes"`
	Cost  float64  `json:"cost"`
	Hops  int      `json:"hops"`
}

type warningResponse struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, paths.ErrDepthExceeded),
		errors.Is(err, layout.ErrUnknownStrategy),
		errors.Is(err, clusters.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// criteriaFromQuery reads lens criteria from search, exclude (repeatable or
// comma separated), root, depth and bidirectional. Without depth a root
// neighbourhood is unbounded.
func criteriaFromQuery(r *http.Request) (lens.Criteria, error) {
	q := r.URL.Query()
	c := lens.Criteria{
		Search:   q.Get("search"),
		Root:     q.Get("root"),
		MaxDepth: -1,
	}
	for _, value := range q["exclude"] {
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.ExcludedTypes = append(c.ExcludedTypes, t)
			}
		}
	}
	if depth := q.Get("depth"); depth != "" {
		n, err := strconv.Atoi(depth)
		if err != nil {
			return c, fmt.Errorf("invalid depth %q", depth)
		}
		c.MaxDepth = n
	}
	if b := q.Get("bidirectional"); b != "" {
		v, err := strconv.ParseBool(b)
		if err != nil {
			return c, fmt.Errorf("invalid bidirectional %q", b)
		}
		c.Bidirectional = v
	}
	return c, nil
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	data, err := s.session.View(c)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("X-View-Hash", lens.ComputeHash(c))
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.session.Metrics()
	if m == nil {
		writeError(w, fmt.Errorf("metrics: %w", session.ErrNotReady))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	p := s.session.Partition()
	if p == nil {
		writeError(w, fmt.Errorf("clusters: %w", session.ErrNotReady))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.session.Graph() == nil {
		writeError(w, session.ErrNotReady)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Report())
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings := s.session.Warnings()
	out := make([]warningResponse, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningResponse{Kind: warning.Kind, Index: warning.Index, Error: warning.Err.Error()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid limit %q", v)
			return
		}
		limit = n
	}
	reports, err := s.session.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = make([]*history.Report, 0)
	}
	writeJSON(w, http.StatusOK, reports)
}

func endpoints(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		badRequest(w, "from and to are required")
		return "", "", false
	}
	return from, to, true
}

func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	from, to, ok := endpoints(w, r)
	if !ok {
		return
	}
	p, err := s.session.ShortestPath(from, to)
	if errors.Is(err, paths.ErrNoPath) {
		writeJSON(w, http.StatusOK, pathResponse{Nodes: make([]string, 0)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{Found: true, Nodes: p.Nodes, Cost: p.Cost, Hops: p.Hops()})
}

func (s *Server) handleAllPaths(w http.ResponseWriter, r *http.Request) {
	from, to, ok := endpoints(w, r)
	if !ok {
		return
	}
	depth := paths.DefaultMaxDepthLimit
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid depth %q", v)
			return
		}
		depth = n
	}
	res, err := s.session.AllPaths(r.Context(), from, to, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	strategy, err := layout.ParseStrategy(mux.Vars(r)["strategy"])
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.session.Relayout(r.Context(), strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.session.Run(r.Context(), session.RunOptions{SkipBuild: true, SkipLayout: true, Reason: "api analyze"})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDetectClusters(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.DetectClusters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.session.Run(r.Context(), session.RunOptions{Reason: "api rebuild"})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Select(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearSelection(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHighlightNeighbors(w http.ResponseWriter, r *http.Request) {
	neighbors, err := s.session.HighlightNeighbors(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"highlighted": neighbors})
}

// handleHighlightPath highlights the shortest path between from and to.
func (s *Server) handleHighlightPath(w http.ResponseWriter, r *http.Request) {
	from, to, ok := endpoints(w, r)
	if !ok {
		return
	}
	p, err := s.session.ShortestPath(from, to)
	if errors.Is(err, paths.ErrNoPath) {
		writeJSON(w, http.StatusOK, pathResponse{Nodes: make([]string, 0)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.Highlight(p.Nodes); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{Found: true, Nodes: p.Nodes, Cost: p.Cost, Hops: p.Hops()})
}
