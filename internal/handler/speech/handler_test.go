package speech

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/specforge/specforge/internal/config"
	speechservice "github.com/specforge/specforge/internal/service/speech"
)

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	r := chi.NewRouter()
	New(speechservice.NewService(config.SpeechConfig{})).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", strings.NewReader(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSynthesizeRejectsInvalidBody(t *testing.T) {
	r := chi.NewRouter()
	New(speechservice.NewService(config.SpeechConfig{})).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", strings.NewReader("not json"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
