package http

import (
	"encoding/json"
	"net/http"

	"adaptive-quiz/internal/app"
	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the websocket endpoint next to the REST stats endpoints.
func NewRouter(service *app.QuizService) http.Handler {
	ws := NewWSHandler(service)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	// GET /quizzes/{quizID}/stats?userId=
	r.Get("/quizzes/{quizID}/stats", func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		stats := service.QuizStats(r.Context(), quizID, r.URL.Query().Get("userId"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	// DELETE /stats?userId=
	r.Delete("/stats", func(w http.ResponseWriter, r *http.Request) {
		service.ClearStats(r.Context(), r.URL.Query().Get("userId"))
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
