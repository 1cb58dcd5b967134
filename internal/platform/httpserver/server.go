package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	rankingengine "festrank/contexts/event-engagement/ranking-engine"
	rankingerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	rankinghttp "festrank/contexts/event-engagement/ranking-engine/transport/http"
	throttleerrors "festrank/contexts/event-engagement/action-throttle/domain/errors"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "festrank/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	rankings rankingengine.Module
}

func New(
	rankings rankingengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		rankings: rankings,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/teams", s.handleGetTeams)
	s.mux.HandleFunc("POST /api/v1/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /api/v1/actions", s.handlePerformAction)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetTeams(w http.ResponseWriter, r *http.Request) {
	var cityID *int64
	if raw := r.URL.Query().Get("city_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeRankingError(w, http.StatusBadRequest, "invalid_city_id", "city_id must be an integer")
			return
		}
		cityID = &parsed
	}

	resp, err := s.rankings.Handler.GetTeamsHandler(r.Context(), cityID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveUserID(w, r)
	if !ok {
		return
	}

	var req rankinghttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRankingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.rankings.Handler.CastVoteHandler(r.Context(), userID, req); err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handlePerformAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveUserID(w, r)
	if !ok {
		return
	}
	clientID := strings.TrimSpace(r.Header.Get("X-Client-Id"))
	if clientID == "" {
		writeRankingError(w, http.StatusUnauthorized, "missing_client", "X-Client-Id header is required")
		return
	}

	var req rankinghttp.PerformActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRankingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.rankings.Handler.PerformActionHandler(r.Context(), clientID, userID, req)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func writeRankingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rankingerrors.ErrInvalidVoteInput):
		writeRankingError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, rankingerrors.ErrUnknownActionType):
		writeRankingError(w, http.StatusBadRequest, "unknown_action_type", err.Error())
	case errors.Is(err, rankingerrors.ErrFeedItemNotFound),
		errors.Is(err, rankingerrors.ErrUserNotFound),
		errors.Is(err, rankingerrors.ErrTeamNotFound):
		writeRankingError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, rankingerrors.ErrAlreadyVoted):
		writeRankingError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, throttleerrors.ErrThrottleConflict):
		writeRankingError(w, http.StatusConflict, "throttle_conflict", err.Error())
	case errors.Is(err, rankingerrors.ErrActionThrottled):
		writeRankingError(w, http.StatusTooManyRequests, "action_throttled", err.Error())
	case errors.Is(err, rankingerrors.ErrRankingsNotCached):
		writeRankingError(w, http.StatusServiceUnavailable, "rankings_not_ready", err.Error())
	default:
		writeRankingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRankingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, rankinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if raw == "" {
		writeRankingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		writeRankingError(w, http.StatusUnauthorized, "invalid_user", "X-User-Id must be a positive integer")
		return 0, false
	}
	return userID, true
}
