package speech

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	speechservice "github.com/specforge/specforge/internal/service/speech"
	"github.com/specforge/specforge/pkg/utils"
)

// Handler narrates assistant turns.
type Handler struct {
	svc *speechservice.Service
}

// New creates the speech handler.
func New(svc *speechservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the synthesis endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech/synthesize", h.handleSynthesize)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary := speechservice.SpokenSummary(payload.Text)
	if summary == "" {
		utils.RespondError(w, http.StatusBadRequest, "nothing to narrate")
		return
	}

	audio, err := h.svc.Synthesize(r.Context(), summary)
	if err != nil {
		log.Printf("[speech] synthesis failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Audio-Duration-Ms", strconv.FormatInt(audio.Duration, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		log.Printf("[speech] audio write failed: %v", err)
	}
}
