// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package debugapi exposes a read-only HTTP introspection surface over
// the overlay node's joined networks: per-network config summaries,
// membership tables, multicast interests, and a websocket stream of
// live filter verdicts.
package debugapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// NetworkLookup resolves a network id to the live Network object, as
// the node's network table would.
type NetworkLookup func(id addressing.NetworkID) (*overlaynet.Network, bool)

// Server serves the read-only introspection routes.
type Server struct {
	router *mux.Router
	lookup NetworkLookup
	hub    *VerdictHub
}

// New builds a Server. hub may be nil to disable the verdict stream
// route.
func New(lookup NetworkLookup, hub *VerdictHub) *Server {
	s := &Server{router: mux.NewRouter(), lookup: lookup, hub: hub}

	s.router.HandleFunc("/networks/{id}", s.handleNetwork).Methods(http.MethodGet)
	s.router.HandleFunc("/networks/{id}/memberships", s.handleMemberships).Methods(http.MethodGet)
	s.router.HandleFunc("/networks/{id}/multicast", s.handleMulticast).Methods(http.MethodGet)
	if hub != nil {
		s.router.HandleFunc("/networks/{id}/verdicts", s.handleVerdictStream)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) networkFromPath(w http.ResponseWriter, r *http.Request) (*overlaynet.Network, bool) {
	raw := mux.Vars(r)["id"]
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		http.Error(w, "invalid network id", http.StatusBadRequest)
		return nil, false
	}
	n, ok := s.lookup(addressing.NetworkID(v))
	if !ok {
		http.Error(w, "network not found", http.StatusNotFound)
		return nil, false
	}
	return n, true
}

type networkSummary struct {
	ID             string `json:"id"`
	HasConfig      bool   `json:"has_config"`
	Name           string `json:"name,omitempty"`
	Revision       uint64 `json:"revision,omitempty"`
	Private        bool   `json:"private,omitempty"`
	Broadcast      bool   `json:"broadcast,omitempty"`
	FailureState   string `json:"failure_state"`
	PortError      int    `json:"port_error"`
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	n, ok := s.networkFromPath(w, r)
	if !ok {
		return
	}
	cfg := n.Config()
	failure, portErr := n.Status()

	summary := networkSummary{
		ID:           n.ID().String(),
		HasConfig:    cfg != nil,
		FailureState: failureLabel(failure),
		PortError:    portErr,
	}
	if cfg != nil {
		summary.Name = cfg.Name
		summary.Revision = cfg.Revision
		summary.Private = cfg.IsPrivate
		summary.Broadcast = cfg.EnableBroadcast
	}
	writeJSON(w, summary)
}

func failureLabel(f overlaynet.FailureState) string {
	switch f {
	case overlaynet.FailureNotFound:
		return "not_found"
	case overlaynet.FailureAccessDenied:
		return "access_denied"
	default:
		return "none"
	}
}

func (s *Server) handleMemberships(w http.ResponseWriter, r *http.Request) {
	n, ok := s.networkFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, n.Memberships())
}

func (s *Server) handleMulticast(w http.ResponseWriter, r *http.Request) {
	n, ok := s.networkFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, n.AllMulticastGroups())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
