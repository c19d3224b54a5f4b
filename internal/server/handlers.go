package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/timeline"
)

type iconView struct {
	ID    string `json:"id"`
	Color string `json:"color,omitempty"`
}

type nodeView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Icon        *iconView `json:"icon,omitempty"`
	State       string    `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) view(n timeline.Node) nodeView {
	p := s.projection.ResolveLabel(n)
	v := nodeView{
		ID:          s.registry.handle(n),
		Kind:        n.Kind().String(),
		Label:       p.Label,
		Description: p.Description,
		State:       p.State.String(),
	}
	if p.Icon.ID != "" {
		v.Icon = &iconView{ID: p.Icon.ID, Color: p.Icon.Color}
	}
	return v
}

func (s *Server) views(nodes []timeline.Node) []nodeView {
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, s.view(n))
	}
	return out
}

func (s *Server) handleRoots(w http.ResponseWriter, r *http.Request) {
	s.writeChildren(w, r, timeline.Root)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.registry.lookup(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown node"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(n))
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	n, ok := s.registry.lookup(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown node"})
		return
	}
	s.writeChildren(w, r, n)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeChildren(w http.ResponseWriter, r *http.Request, n timeline.Node) {
	children, err := s.projection.ResolveChildren(r.Context(), n)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("resolve children", zap.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.views(children))
}

func statusFor(err error) int {
	switch {
	case gitcore.IsVersionControlError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
