package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specforge/specforge/internal/model/attachment"
	"github.com/specforge/specforge/internal/model/chat"
	"github.com/specforge/specforge/internal/service/orchestrator"
	"github.com/specforge/specforge/internal/service/session"
	"github.com/specforge/specforge/pkg/utils"
)

// Handler exposes the interview conversation over HTTP.
type Handler struct {
	sessions *session.Service
	orch     *orchestrator.Service
}

// New creates the interview handler.
func New(sessions *session.Service, orch *orchestrator.Service) *Handler {
	return &Handler{sessions: sessions, orch: orch}
}

// RegisterRoutes registers the interview endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleGetSession)
	r.Post("/interview/message", h.handleMessage)
	r.Post("/interview/abort", h.handleAbort)
	r.Post("/interview/reset", h.handleReset)
	r.Post("/interview/mode", h.handleMode)
}

// SessionView is the client-facing session shape.
type SessionView struct {
	Messages         []chat.Message `json:"messages"`
	Phase            chat.Phase     `json:"phase"`
	QuestionCount    int            `json:"questionCount"`
	CanGenerate      bool           `json:"canGenerate"`
	ModificationMode bool           `json:"modificationMode"`
	HasFinalSpec     bool           `json:"hasFinalSpec"`
}

func viewOf(sess *chat.Session) SessionView {
	return SessionView{
		Messages:         sess.Messages,
		Phase:            sess.Phase,
		QuestionCount:    sess.QuestionCount,
		CanGenerate:      sess.CanGenerate(),
		ModificationMode: sess.ModificationMode,
		HasFinalSpec:     sess.FinalSpec != "",
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	sess, err := h.sessions.LoadOrCreate(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var payload struct {
		Text  string                     `json:"text"`
		Files []attachment.ProcessedFile `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.orch.Send(r.Context(), userID, payload.Text, payload.Files)
	switch {
	case errors.Is(err, orchestrator.ErrEmptySend):
		utils.RespondError(w, http.StatusBadRequest, "nothing to send")
		return
	case errors.Is(err, orchestrator.ErrSendInFlight):
		utils.RespondError(w, http.StatusConflict, "a message is already being processed")
		return
	case errors.Is(err, context.Canceled):
		// Aborted turns are silent.
		utils.RespondJSON(w, http.StatusOK, map[string]bool{"aborted": true})
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	utils.RespondJSON(w, http.StatusOK, struct {
		SessionView
		Finalized bool `json:"finalized"`
	}{viewOf(res.Session), res.Finalized})
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}
	h.orch.Abort(userID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	sess, err := h.sessions.Reset(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.orch.SetModificationMode(r.Context(), userID, payload.Enabled)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to switch mode")
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}
