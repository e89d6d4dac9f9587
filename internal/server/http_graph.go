package server

import (
	"net/http"

	"github.com/jarvis-tasks/jarvis/internal/store/sqlutil"
)

// handleGetGraph handles GET /v1/graph.
// Returns tasks as nodes, dependencies as edges, each node's depth, and
// board stats for the graph view.
func (s *TasksServer) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.store.GetGraph(r.Context(), queryInt(r, "limit", sqlutil.DefaultGraphLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get graph")
		return
	}

	depths, err := s.graph.CalculateDepths(r.Context())
	if err != nil {
		// A cycle left by an older writer; the graph is still useful without depths.
		s.logger.Warn("calculate depths", "error", err)
	} else {
		graph.Depth = make(map[string]int, len(graph.Nodes))
		for _, n := range graph.Nodes {
			graph.Depth[n.ID] = depths[n.ID]
		}
	}

	writeJSON(w, http.StatusOK, graph)
}

// handleGetStats handles GET /v1/stats.
func (s *TasksServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
