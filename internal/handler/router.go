package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/specforge/specforge/internal/handler/attachments"
	"github.com/specforge/specforge/internal/handler/document"
	"github.com/specforge/specforge/internal/handler/interview"
	speechHandler "github.com/specforge/specforge/internal/handler/speech"
	middlewarePkg "github.com/specforge/specforge/internal/middleware"
	"github.com/specforge/specforge/internal/ingest"
	"github.com/specforge/specforge/internal/service/orchestrator"
	"github.com/specforge/specforge/internal/service/session"
	speechService "github.com/specforge/specforge/internal/service/speech"
	"github.com/specforge/specforge/pkg/utils"
)

// NewRouter wires HTTP routes to core services. speechSvc may be nil
// when synthesis credentials are absent.
func NewRouter(sessions *session.Service, orch *orchestrator.Service, pipeline *ingest.Pipeline, speechSvc *speechService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	interviewHandler := interview.New(sessions, orch)
	attachmentsHandler := attachments.New(pipeline)
	documentHandler := document.New(sessions)

	r.Route("/api", func(api chi.Router) {
		interviewHandler.RegisterRoutes(api)
		attachmentsHandler.RegisterRoutes(api)
		documentHandler.RegisterRoutes(api)

		if speechSvc != nil {
			speechHandler.New(speechSvc).RegisterRoutes(api)
		}

		// Processing-status stream: lets the client show progress while
		// a provider round trip is pending.
		api.Get("/stream", handleStatusStream)
	})

	return r
}

func handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	userID := utils.UserID(r)
	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	log.Printf("[sse] opening status stream for user=%s", userID)

	ticker := time.NewTicker(8 * time.Second)
	defer ticker.Stop()

	utils.SendSSEChunk(w, flusher, map[string]any{
		"event":   "status",
		"message": "stream established",
	})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing status stream for user=%s", userID)
			return
		case t := <-ticker.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event":   "heartbeat",
				"message": "awaiting assistant response",
				"time":    t.UTC().Format(time.RFC3339),
			})
		}
	}
}
