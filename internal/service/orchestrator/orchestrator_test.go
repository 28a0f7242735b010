package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/specforge/specforge/internal/model/attachment"
	"github.com/specforge/specforge/internal/model/chat"
	"github.com/specforge/specforge/internal/service/ai"
	"github.com/specforge/specforge/internal/service/session"
)

type stubProvider struct {
	mu    sync.Mutex
	reply string
	valid bool
	err   error
	block bool
	calls [][]*schema.Message
}

func (p *stubProvider) GenerateValidated(ctx context.Context, messages []*schema.Message) (*schema.Message, bool, error) {
	p.mu.Lock()
	p.calls = append(p.calls, messages)
	block := p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	if p.err != nil {
		return nil, false, p.err
	}
	return schema.AssistantMessage(p.reply, nil), p.valid, nil
}

func (p *stubProvider) lastCall() []*schema.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

type stubUploader struct {
	fail bool
	puts int
}

func (u *stubUploader) Put(_ context.Context, _ []byte, _, _ string) (string, error) {
	u.puts++
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	return "https://blobs.example.com/spec-attachments/object.jpg", nil
}

func newTestService(t *testing.T, provider Provider, blobs Uploader) *Service {
	t.Helper()
	sessions := session.NewService(session.NewMemoryStore(), nil, time.Hour)
	t.Cleanup(sessions.Close)
	return NewService(sessions, provider, blobs)
}

func lastMessage(sess *chat.Session) chat.Message {
	return sess.Messages[len(sess.Messages)-1]
}

func TestSendRejectsEmptyInput(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, nil)
	if _, err := svc.Send(context.Background(), "u1", "   ", nil); !errors.Is(err, ErrEmptySend) {
		t.Fatalf("expected ErrEmptySend, got %v", err)
	}
}

func TestSendPlainTurn(t *testing.T) {
	provider := &stubProvider{reply: "Quelle est votre cible ?", valid: true}
	svc := newTestService(t, provider, nil)

	res, err := svc.Send(context.Background(), "u1", "Une app de recettes", nil)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	sess := res.Session
	// welcome + user + assistant
	if len(sess.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sess.Messages))
	}
	if sess.Messages[1].Role != chat.RoleUser || sess.Messages[1].DisplayContent != "Une app de recettes" {
		t.Fatalf("user turn not appended first: %+v", sess.Messages[1])
	}
	if lastMessage(sess).DisplayContent != "Quelle est votre cible ?" {
		t.Fatalf("assistant turn missing: %+v", lastMessage(sess))
	}
	if sess.QuestionCount != 1 {
		t.Fatalf("question count should advance, got %d", sess.QuestionCount)
	}
	if res.Finalized {
		t.Fatal("plain turn must not finalize")
	}

	history := provider.lastCall()
	if history[0].Role != schema.System {
		t.Fatal("history must open with the system instruction")
	}
	if got := history[len(history)-1]; got.Role != schema.User || got.Content != "Une app de recettes" {
		t.Fatalf("history must end with the new turn, got %+v", got)
	}
}

func TestSendFinalizesOnMarker(t *testing.T) {
	provider := &stubProvider{
		reply: "[AUDIO]C'est prêt.[/AUDIO]Voici le document :\n" +
			ai.CompletionMarker + "\n# Spécifications\n\n## Objectif\nFaire X.",
		valid: true,
	}
	svc := newTestService(t, provider, nil)

	res, err := svc.Send(context.Background(), "u1", "Génère les spécifications", nil)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if !res.Finalized {
		t.Fatal("expected finalization")
	}

	sess := res.Session
	if sess.Phase != chat.PhaseComplete {
		t.Fatalf("expected complete phase, got %q", sess.Phase)
	}
	if !strings.HasPrefix(sess.FinalSpec, "# Spécifications") {
		t.Fatalf("final spec not cleaned: %q", sess.FinalSpec)
	}
	if strings.Contains(sess.FinalSpec, ai.CompletionMarker) {
		t.Fatal("marker leaked into the final spec")
	}
	if lastMessage(sess).DisplayContent != SpecsReadyMessage {
		t.Fatal("synthetic confirmation turn missing")
	}
	if sess.MessagesAtLastSpec != len(sess.Messages) {
		t.Fatalf("MessagesAtLastSpec = %d, want %d", sess.MessagesAtLastSpec, len(sess.Messages))
	}
}

func TestSendSuppressesMarkerInModificationMode(t *testing.T) {
	provider := &stubProvider{
		reply: "J'ai noté la correction.\n" + ai.CompletionMarker + "\n# Document\nrégénéré",
		valid: true,
	}
	svc := newTestService(t, provider, nil)

	if _, err := svc.SetModificationMode(context.Background(), "u1", true); err != nil {
		t.Fatalf("SetModificationMode err: %v", err)
	}

	res, err := svc.Send(context.Background(), "u1", "Le titre est faux", nil)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	sess := res.Session
	if res.Finalized || sess.Phase == chat.PhaseComplete {
		t.Fatal("modification mode must suppress finalization")
	}
	if sess.FinalSpec != "" {
		t.Fatalf("final spec must not be overwritten, got %q", sess.FinalSpec)
	}
	got := lastMessage(sess).DisplayContent
	if got != "J'ai noté la correction." {
		t.Fatalf("expected the conversational preamble, got %q", got)
	}
}

func TestSendAppendsApologyOnExhaustion(t *testing.T) {
	provider := &stubProvider{reply: "??", valid: false}
	svc := newTestService(t, provider, nil)

	res, err := svc.Send(context.Background(), "u1", "Bonjour", nil)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	sess := res.Session
	if lastMessage(sess).DisplayContent != ai.ApologyMessage {
		t.Fatalf("expected the apology turn, got %q", lastMessage(sess).DisplayContent)
	}
	if sess.QuestionCount != 0 {
		t.Fatalf("question count must not advance on exhaustion, got %d", sess.QuestionCount)
	}
}

func TestSendSurfacesTransportErrorAsChatMessage(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	svc := newTestService(t, provider, nil)

	res, err := svc.Send(context.Background(), "u1", "Bonjour", nil)
	if err != nil {
		t.Fatalf("transport failures must become UI state, got err %v", err)
	}
	got := lastMessage(res.Session).DisplayContent
	if !strings.HasPrefix(got, "⚠️") {
		t.Fatalf("expected an error-prefixed chat message, got %q", got)
	}
	if res.Session.QuestionCount != 0 {
		t.Fatal("question count must not advance on transport errors")
	}
}

func TestSendAssemblesAttachmentPayload(t *testing.T) {
	provider := &stubProvider{reply: "Merci pour le document.", valid: true}
	uploader := &stubUploader{}
	svc := newTestService(t, provider, uploader)

	files := []attachment.ProcessedFile{
		{Kind: attachment.KindText, Name: "notes.txt", Content: "[File: notes.txt]\ncontenu"},
		{Kind: attachment.KindImage, Name: "mock.png", Content: "data:image/png;base64,aGVsbG8="},
	}
	res, err := svc.Send(context.Background(), "u1", "Voici mes notes", files)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	userMsg := res.Session.Messages[1]
	if len(userMsg.Parts) != 2 {
		t.Fatalf("expected text part + image part, got %d parts", len(userMsg.Parts))
	}
	text := userMsg.Parts[0]
	if text.Type != chat.PartText || !strings.Contains(text.Text, "--- notes.txt ---") {
		t.Fatalf("text attachment block missing: %q", text.Text)
	}
	if !strings.HasPrefix(text.Text, "Voici mes notes") {
		t.Fatalf("user text must lead the payload: %q", text.Text)
	}
	img := userMsg.Parts[1]
	if img.Type != chat.PartImageURL || !strings.Contains(img.ImageURL, "/spec-attachments/") {
		t.Fatalf("image must be uploaded to storage, got %q", img.ImageURL)
	}
	if uploader.puts != 1 {
		t.Fatalf("expected 1 upload, got %d", uploader.puts)
	}

	// The structured payload is what the provider sees.
	history := provider.lastCall()
	newTurn := history[len(history)-1]
	if len(newTurn.MultiContent) != 2 {
		t.Fatalf("provider turn must be multi-part, got %d", len(newTurn.MultiContent))
	}
	if newTurn.MultiContent[1].ImageURL == nil || !strings.Contains(newTurn.MultiContent[1].ImageURL.URL, "/spec-attachments/") {
		t.Fatal("image part not forwarded to the provider")
	}
}

func TestSendFallsBackToInlineImageOnUploadFailure(t *testing.T) {
	provider := &stubProvider{reply: "Image bien reçue.", valid: true}
	svc := newTestService(t, provider, &stubUploader{fail: true})

	files := []attachment.ProcessedFile{
		{Kind: attachment.KindImage, Name: "mock.png", Content: "data:image/png;base64,aGVsbG8="},
	}
	res, err := svc.Send(context.Background(), "u1", "", files)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	parts := res.Session.Messages[1].Parts
	if len(parts) != 1 {
		t.Fatalf("expected a single image part, got %d", len(parts))
	}
	if !strings.HasPrefix(parts[0].ImageURL, "data:") {
		t.Fatalf("expected inline fallback, got %q", parts[0].ImageURL)
	}
}

func TestSendImageOnlyOmitsEmptyTextPart(t *testing.T) {
	provider := &stubProvider{reply: "Image bien reçue.", valid: true}
	svc := newTestService(t, provider, &stubUploader{})

	files := []attachment.ProcessedFile{
		{Kind: attachment.KindImage, Name: "mock.png", Content: "data:image/png;base64,aGVsbG8="},
	}
	res, err := svc.Send(context.Background(), "u1", "", files)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	parts := res.Session.Messages[1].Parts
	if len(parts) != 1 || parts[0].Type != chat.PartImageURL {
		t.Fatalf("expected exactly one image part, got %+v", parts)
	}

	// The provider payload must not carry an empty text part either.
	history := provider.lastCall()
	newTurn := history[len(history)-1]
	if len(newTurn.MultiContent) != 1 {
		t.Fatalf("provider turn must hold only the image, got %d parts", len(newTurn.MultiContent))
	}
	if newTurn.MultiContent[0].Type != schema.ChatMessagePartTypeImageURL {
		t.Fatalf("expected an image part, got %q", newTurn.MultiContent[0].Type)
	}
}

func TestAbortIsSilent(t *testing.T) {
	provider := &stubProvider{block: true}
	svc := newTestService(t, provider, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), "u1", "Bonjour", nil)
		done <- err
	}()

	// Wait for the turn to reach the provider, then abort it.
	deadline := time.After(2 * time.Second)
	for {
		provider.mu.Lock()
		started := len(provider.calls) > 0
		provider.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("send never reached the provider")
		case <-time.After(5 * time.Millisecond):
		}
	}
	svc.Abort("u1")

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	sess, _ := svc.sessions.LoadOrCreate(context.Background(), "u1")
	if lastMessage(sess).Role != chat.RoleUser {
		t.Fatal("an aborted turn must not append an assistant message")
	}

	// The cancelled handle is cleared; a new send goes through.
	provider.mu.Lock()
	provider.block = false
	provider.reply = "Reprenons."
	provider.valid = true
	provider.mu.Unlock()
	if _, err := svc.Send(context.Background(), "u1", "On reprend", nil); err != nil {
		t.Fatalf("send after abort failed: %v", err)
	}
}

func TestSendRejectsConcurrentTurn(t *testing.T) {
	provider := &stubProvider{block: true}
	svc := newTestService(t, provider, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Send(context.Background(), "u1", "Première", nil)
	}()

	deadline := time.After(2 * time.Second)
	for {
		provider.mu.Lock()
		started := len(provider.calls) > 0
		provider.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first send never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := svc.Send(context.Background(), "u1", "Deuxième", nil); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}
	svc.Abort("u1")
	<-done
}
