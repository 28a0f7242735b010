package document

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specforge/specforge/internal/markdown"
	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/service/session"
	"github.com/specforge/specforge/pkg/utils"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Handler serves the generated specification document.
type Handler struct {
	sessions *session.Service
}

// New creates the document handler.
func New(sessions *session.Service) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes registers the document endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/document/preview", h.handlePreview)
	r.Get("/document/export", h.handleExport)
}

func (h *Handler) loadSpec(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := utils.UserID(r)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return "", false
	}

	sess, err := h.sessions.LoadOrCreate(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return "", false
	}
	if sess.FinalSpec == "" {
		utils.RespondError(w, http.StatusNotFound, "no specification has been generated yet")
		return "", false
	}
	return sess.FinalSpec, true
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.loadSpec(w, r)
	if !ok {
		return
	}

	nodes := markdown.Parse(spec, markdown.DefaultOptions())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(render.HTML(nodes))); err != nil {
		log.Printf("[document] preview write failed: %v", err)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.loadSpec(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="specifications.docx"`)
	w.WriteHeader(http.StatusOK)
	if err := render.ExportDocx(w, spec, "Spécifications du projet"); err != nil {
		log.Printf("[document] export failed: %v", err)
	}
}
