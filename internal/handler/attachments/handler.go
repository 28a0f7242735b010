package attachments

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specforge/specforge/internal/ingest"
	"github.com/specforge/specforge/pkg/utils"
)

// Handler runs uploaded files through the ingestion pipeline.
type Handler struct {
	pipeline *ingest.Pipeline
}

// New creates the attachments handler.
func New(pipeline *ingest.Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// RegisterRoutes registers the attachment endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/attachments/validate", h.handleValidate)
	r.Post("/attachments/materialize", h.handleMaterialize)
}

// readUpload pulls the multipart "file" part, bounded slightly above
// the raw ceiling so oversized files are rejected by the pipeline with
// a proper message instead of a broken read.
func readUpload(r *http.Request) (name, mime string, data []byte, err error) {
	if err = r.ParseMultipartForm(ingest.MaxRawBytes + 1<<20); err != nil {
		return "", "", nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, ingest.MaxRawBytes+1))
	if err != nil {
		return "", "", nil, err
	}
	return header.Filename, header.Header.Get("Content-Type"), data, nil
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	name, mime, data, err := readUpload(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "a multipart 'file' part is required")
		return
	}

	verdict := h.pipeline.Validate(r.Context(), name, mime, data)
	utils.RespondJSON(w, http.StatusOK, verdict)
}

func (h *Handler) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	name, mime, data, err := readUpload(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "a multipart 'file' part is required")
		return
	}

	// Text extracted during validation rides along so it is not
	// re-extracted here.
	extracted := r.FormValue("extractedContent")

	file, err := h.pipeline.Materialize(r.Context(), name, mime, data, extracted)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to process file")
		return
	}
	utils.RespondJSON(w, http.StatusOK, file)
}
