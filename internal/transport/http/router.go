package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// NewRouter mounts the websocket endpoint, health, metrics and the read-only JSON API.
func NewRouter(service *app.DuelService, ws *WSHandler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	api := &apiHandler{service: service}
	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", api.leaderboard)
		r.Get("/players/{id}/rating", api.rating)
		r.Get("/status", api.status)
	})
	return r
}

type apiHandler struct {
	service *app.DuelService
}

func (h *apiHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context())
	if err != nil {
		respondWithError(w, statusFromError(err), err.Error())
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *apiHandler) rating(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.Rating(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, statusFromError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, card)
}

type statusPayload struct {
	Waiting     []string `json:"waiting"`
	ActiveDuels int      `json:"activeDuels"`
}

// status reports this instance's queue and live duel count.
func (h *apiHandler) status(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, statusPayload{
		Waiting:     h.service.Waiting(),
		ActiveDuels: h.service.ActiveDuels(),
	})
}

func statusFromError(err error) int {
	if errors.Is(err, domain.ErrNotRegistered) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorPayload{Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
