package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"mentionguard/core"
	"mentionguard/usecases"
)

// StatusHTTPHandler exposes monitoring state to operators over HTTP
type StatusHTTPHandler struct {
	mentionsUseCase usecases.MentionsUseCaseInterface
}

func NewStatusHTTPHandler(mentionsUseCase usecases.MentionsUseCaseInterface) *StatusHTTPHandler {
	return &StatusHTTPHandler{mentionsUseCase: mentionsUseCase}
}

type ForceCheckRequest struct {
	ActorID string `json:"actor_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *StatusHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHTTPHandler) HandleGetMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	log.Printf("📋 Monitoring status request for guild %s from %s", guildID, r.RemoteAddr)

	status, err := h.mentionsUseCase.GetMonitoringStatus(r.Context(), guildID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, status)
}

func (h *StatusHTTPHandler) HandleGetAuditStats(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	log.Printf("📋 Audit stats request for guild %s from %s", guildID, r.RemoteAddr)

	stats, err := h.mentionsUseCase.GetAuditStats(r.Context(), guildID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, stats)
}

func (h *StatusHTTPHandler) HandleListFixSessions(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	h.writeJSONResponse(w, http.StatusOK, h.mentionsUseCase.PendingFixSessions(guildID))
}

func (h *StatusHTTPHandler) HandleForceCheck(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildID"]
	log.Printf("🔍 Force check request for guild %s from %s", guildID, r.RemoteAddr)

	var req ForceCheckRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Failed to parse request body: %v", err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.mentionsUseCase.ForceCheck(r.Context(), guildID, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// SetupEndpoints registers the operator routes on the router
func (h *StatusHTTPHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/guilds/{guildID}/monitoring", h.HandleGetMonitoringStatus).Methods("GET")
	router.HandleFunc("/guilds/{guildID}/audit/stats", h.HandleGetAuditStats).Methods("GET")
	router.HandleFunc("/guilds/{guildID}/fix-sessions", h.HandleListFixSessions).Methods("GET")
	router.HandleFunc("/guilds/{guildID}/check", h.HandleForceCheck).Methods("POST")
}

func (h *StatusHTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrCheckInProgress):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrSnapshotUnavailable):
		status = http.StatusServiceUnavailable
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		log.Printf("❌ Request failed: %v", err)
	}
	h.writeJSONResponse(w, status, ErrorResponse{Error: core.UserFacingReason(err)})
}

func (h *StatusHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}
