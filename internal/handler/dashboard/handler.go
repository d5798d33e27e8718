package dashboard

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mirror-labs/mirror/backend/internal/model/chat"
	"github.com/mirror-labs/mirror/backend/internal/store"
	"github.com/mirror-labs/mirror/backend/pkg/utils"
)

const recentTurnLimit = 100

// Handler serves the read-only analytics surface consumed by the
// dashboard frontend.
type Handler struct {
	history *store.History
}

// New creates the dashboard handler.
func New(history *store.History) *Handler {
	return &Handler{history: history}
}

// RegisterRoutes mounts the analytics endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
}

type dashboardResponse struct {
	TotalMessages  int64                   `json:"totalMessages"`
	MoodCounts     []store.MoodCount       `json:"moodCounts"`
	RecentSessions []store.SessionActivity `json:"recentSessions"`
	RecentMessages []chat.Turn             `json:"recentMessages"`
}

// handleDashboard assembles a point-in-time snapshot from the history
// aggregates. Each read is consistent at the moment it runs; the
// snapshot is not transactional across all four.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.history.TotalTurns(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	moods, err := h.history.MoodCounts(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	sessions, err := h.history.ActiveSessions(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	recent, err := h.history.RecentTurns(ctx, recentTurnLimit)
	if err != nil {
		h.fail(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, dashboardResponse{
		TotalMessages:  total,
		MoodCounts:     moods,
		RecentSessions: sessions,
		RecentMessages: recent,
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	log.Printf("[dashboard] aggregate query failed: %v", err)
	utils.RespondError(w, http.StatusInternalServerError, "dashboard unavailable")
}
