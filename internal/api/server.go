// Package api provides the HTTP API for observing and commanding a campaign.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate limited.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/warfront/internal/engine"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/healer"
	"github.com/talgya/warfront/internal/persistence"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// MaxSpeed is the highest accepted speed multiplier.
const MaxSpeed = 1000

// commandTimeout bounds how long a request waits for the tick that applies
// its command.
const commandTimeout = 5 * time.Second

// Server serves the campaign over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Requests per minute per client on POST endpoints; 0 uses 120.
	CommandRate int
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	rate := s.CommandRate
	if rate <= 0 {
		rate = 120
	}
	limiter := NewRateLimiter(rate, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(limiter, h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/units", s.handleUnits)
	mux.HandleFunc("GET /api/v1/sites", s.handleSites)
	mux.HandleFunc("GET /api/v1/factions", s.handleFactions)
	mux.HandleFunc("GET /api/v1/group", s.handleGroup)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/group/invite", admin(s.handleInvite))
	mux.HandleFunc("POST /api/v1/group/kick", admin(s.handleKick))
	mux.HandleFunc("POST /api/v1/unit/mode", admin(s.handleMode))
	mux.HandleFunc("POST /api/v1/unit/role", admin(s.handleRole))
	mux.HandleFunc("POST /api/v1/faction/squad-level", admin(s.handleSquadLevel))
	mux.HandleFunc("POST /api/v1/faction/squad-tier", admin(s.handleSquadTier))
	mux.HandleFunc("POST /api/v1/site/owner", admin(s.handleSiteOwner))
	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", admin(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server is
// for shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no api.adminKey set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	out := map[string]any{
		"name":   "warfront",
		"status": st,
	}
	if s.Eng != nil {
		out["speed"] = s.Eng.Speed()
		out["running"] = s.Eng.Running()
	}
	writeJSON(w, out)
}

// unitView adds readable enum names to a unit.
type unitView struct {
	units.Unit
	KindName  string `json:"kind_name"`
	RoleName  string `json:"role_name"`
	ModeName  string `json:"mode_name"`
	StateName string `json:"state_name"`
	TierName  string `json:"tier_name"`
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var team *units.Team
	if v := q.Get("team"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "team must be a non-negative integer", http.StatusBadRequest)
			return
		}
		t := units.Team(n)
		team = &t
	}
	aliveOnly := q.Get("alive") == "true"
	kind := q.Get("kind")

	snap := s.Sim.Snapshot()
	result := make([]unitView, 0, len(snap.Units))
	for _, u := range snap.Units {
		if team != nil && u.Team != *team {
			continue
		}
		if aliveOnly && !u.Alive {
			continue
		}
		if kind != "" && u.Kind.String() != kind {
			continue
		}
		result = append(result, unitView{
			Unit:      u,
			KindName:  u.Kind.String(),
			RoleName:  u.Role.String(),
			ModeName:  u.Mode.String(),
			StateName: u.State.String(),
			TierName:  u.GearTier.String(),
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	type siteView struct {
		world.Site
		GuardTier string `json:"guard_tier"`
		Guards    int    `json:"guards_alive"`
	}

	snap := s.Sim.Snapshot()
	alive := make(map[uint64]int)
	for _, u := range snap.Units {
		if u.IsGuard() && u.Alive && u.HomeSiteID != nil {
			alive[*u.HomeSiteID]++
		}
	}
	result := make([]siteView, 0, len(snap.Sites))
	for _, site := range snap.Sites {
		result = append(result, siteView{
			Site:      site,
			GuardTier: site.Guards.Tier.String(),
			Guards:    alive[site.ID],
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"factions":  snap.Factions,
		"standings": s.Sim.Standings(),
	})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	if snap.Group == nil {
		writeJSON(w, map[string]any{"group": nil})
		return
	}
	writeJSON(w, snap.Group)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, s.Sim.RecentEvents(limit, r.URL.Query().Get("category")))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Speed > MaxSpeed {
			http.Error(w, fmt.Sprintf("speed must be 0-%d", MaxSpeed), http.StatusBadRequest)
			return
		}
		if err := s.Eng.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	snap := s.Sim.Snapshot()
	if err := s.DB.Save(snap); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    snap.Tick,
		"message": "snapshot saved",
	})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitID units.ID `json:"unit_id"`
	}
	if decode(w, r, &req) {
		s.run(w, r, engine.InviteToGroup{UnitID: req.UnitID})
	}
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitID    units.ID `json:"unit_id"`
		Permanent bool     `json:"permanent"`
	}
	if decode(w, r, &req) {
		s.run(w, r, engine.KickFromGroup{UnitID: req.UnitID, Permanent: req.Permanent})
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitID units.ID `json:"unit_id"`
		Mode   string   `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	mode, err := units.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.run(w, r, engine.SetBehaviorMode{UnitID: req.UnitID, Mode: mode})
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitID  units.ID `json:"unit_id"`
		Role    string   `json:"role"`
		Loadout []string `json:"loadout,omitempty"`
		Policy  string   `json:"policy,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	role, err := units.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := engine.SetRole{UnitID: req.UnitID, Role: role, Loadout: req.Loadout}
	if req.Policy != "" {
		p, err := healer.ParsePolicy(req.Policy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd.Policy = &p
	}
	s.run(w, r, cmd)
}

type factionRequest struct {
	Faction units.Team `json:"faction"`
}

func (s *Server) handleSquadLevel(w http.ResponseWriter, r *http.Request) {
	var req factionRequest
	if decode(w, r, &req) {
		s.run(w, r, engine.PurchaseSquadLevel{Faction: req.Faction})
	}
}

func (s *Server) handleSquadTier(w http.ResponseWriter, r *http.Request) {
	var req factionRequest
	if decode(w, r, &req) {
		s.run(w, r, engine.PurchaseSquadGearTier{Faction: req.Faction})
	}
}

func (s *Server) handleSiteOwner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteID uint64     `json:"site_id"`
		Owner  units.Team `json:"owner"`
	}
	if decode(w, r, &req) {
		s.run(w, r, engine.SiteOwnershipChanged{SiteID: req.SiteID, Owner: req.Owner})
	}
}

// run queues a command and answers with its result once a tick applies it.
func (s *Server) run(w http.ResponseWriter, r *http.Request, cmd engine.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	msg, err := s.Sim.Do(ctx, cmd)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": msg})
}

// statusFor maps a command error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownUnit),
		errors.Is(err, engine.ErrUnknownSite),
		errors.Is(err, engine.ErrUnknownFaction):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotControllable),
		errors.Is(err, engine.ErrGuardRole),
		errors.Is(err, formation.ErrGuard),
		errors.Is(err, formation.ErrHostile):
		return http.StatusForbidden
	case errors.Is(err, progression.ErrInsufficientGold):
		return http.StatusPaymentRequired
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusConflict
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
