package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/specforge/specforge/internal/model/attachment"
	"github.com/specforge/specforge/internal/model/chat"
	"github.com/specforge/specforge/internal/service/ai"
	"github.com/specforge/specforge/internal/service/session"
	"github.com/specforge/specforge/internal/service/storage"
)

var (
	// ErrEmptySend rejects a turn with no text and no attachments.
	ErrEmptySend = errors.New("nothing to send")
	// ErrSendInFlight rejects a turn while the previous one is still
	// being answered.
	ErrSendInFlight = errors.New("a send is already in flight")
)

// TransportErrorMessage is shown in the conversation when the provider
// is unreachable. Distinct from the content-quality retry path.
const TransportErrorMessage = "⚠️ Erreur de connexion au modèle. Veuillez réessayer dans un instant."

// SpecsReadyMessage is the synthetic confirmation turn appended when
// the interview concludes.
const SpecsReadyMessage = "Vos spécifications sont prêtes ! Vous pouvez les consulter, " +
	"les exporter, ou revenir à l'entretien pour les préciser."

// Provider is the completion backend with the retry-on-invalid policy
// already applied.
type Provider interface {
	GenerateValidated(ctx context.Context, messages []*schema.Message) (*schema.Message, bool, error)
}

// Uploader moves image attachments to durable storage; nil when object
// storage is not configured.
type Uploader interface {
	Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error)
}

// Result reports what a completed turn did to the session.
type Result struct {
	Session   *chat.Session
	Finalized bool
}

// Service runs the interview state machine: one pending turn per user,
// optimistic appends, completion detection.
type Service struct {
	sessions *session.Service
	provider Provider
	blobs    Uploader

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewService wires the orchestrator to its collaborators.
func NewService(sessions *session.Service, provider Provider, blobs Uploader) *Service {
	return &Service{
		sessions: sessions,
		provider: provider,
		blobs:    blobs,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Send runs one interview turn. The user message is appended before
// the provider round trip so it renders immediately. A cancelled send
// appends nothing beyond the user turn and returns ctx.Err.
func (s *Service) Send(ctx context.Context, userID, text string, files []attachment.ProcessedFile) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return nil, ErrEmptySend
	}

	ctx, err := s.begin(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer s.finish(userID)

	sess, err := s.sessions.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	userMsg := s.buildUserMessage(ctx, text, files)
	sess.Append(userMsg)
	s.sessions.ScheduleSave(sess)

	history := s.buildHistory(sess)
	response, valid, err := s.provider.GenerateValidated(ctx, history)
	if ctx.Err() != nil {
		// Aborted turns surface nothing.
		return nil, ctx.Err()
	}
	if err != nil {
		log.Printf("[orchestrator] provider call failed for user=%s: %v", userID, err)
		sess.Append(chat.Message{Role: chat.RoleAssistant, DisplayContent: TransportErrorMessage})
		s.sessions.ScheduleSave(sess)
		return &Result{Session: sess}, nil
	}

	if !valid {
		// Retry ceiling exhausted; question count does not advance.
		sess.Append(chat.Message{Role: chat.RoleAssistant, DisplayContent: ai.ApologyMessage})
		s.sessions.ScheduleSave(sess)
		return &Result{Session: sess}, nil
	}

	return s.acceptResponse(ctx, sess, response.Content)
}

// acceptResponse classifies a valid completion: finalization,
// modification-mode noise, or a plain interview turn.
func (s *Service) acceptResponse(ctx context.Context, sess *chat.Session, text string) (*Result, error) {
	if ai.HasCompletionMarker(text) {
		if sess.ModificationMode {
			// A reflexively echoed marker must not overwrite the spec
			// mid-correction; keep only the conversational part.
			sess.Append(chat.Message{Role: chat.RoleAssistant, DisplayContent: ai.ExtractConversationalPreamble(text)})
			sess.QuestionCount++
			s.sessions.ScheduleSave(sess)
			return &Result{Session: sess}, nil
		}
		return s.finalize(ctx, sess, text)
	}

	sess.Append(chat.Message{Role: chat.RoleAssistant, DisplayContent: text})
	sess.QuestionCount++
	s.sessions.ScheduleSave(sess)
	return &Result{Session: sess}, nil
}

// finalize stores the cleaned document and persists immediately; loss
// of this artifact is unacceptable, so no debounce.
func (s *Service) finalize(ctx context.Context, sess *chat.Session, text string) (*Result, error) {
	sess.FinalSpec = ai.CleanFinalSpec(text)
	sess.Phase = chat.PhaseComplete
	sess.Append(chat.Message{Role: chat.RoleAssistant, DisplayContent: SpecsReadyMessage})
	sess.MessagesAtLastSpec = len(sess.Messages)

	if err := s.sessions.FlushNow(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist final spec: %w", err)
	}
	return &Result{Session: sess, Finalized: true}, nil
}

// Abort cancels the in-flight turn for a user, if any. Silent when
// nothing is pending.
func (s *Service) Abort(userID string) {
	s.mu.Lock()
	cancel := s.inflight[userID]
	delete(s.inflight, userID)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetModificationMode flips the finalization-suppression flag. Entering
// it also reopens the interview phase.
func (s *Service) SetModificationMode(ctx context.Context, userID string, enabled bool) (*chat.Session, error) {
	sess, err := s.sessions.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.ModificationMode = enabled
	if enabled {
		sess.Phase = chat.PhaseInterview
	}
	s.sessions.ScheduleSave(sess)
	return sess, nil
}

func (s *Service) begin(ctx context.Context, userID string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[userID]; busy {
		return nil, ErrSendInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	s.inflight[userID] = cancel
	return ctx, nil
}

func (s *Service) finish(userID string) {
	s.mu.Lock()
	cancel := s.inflight[userID]
	delete(s.inflight, userID)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// buildUserMessage assembles the optimistic user turn. With
// attachments, the payload is multi-part: one text part carrying the
// user's text plus every text attachment's content, then one image
// part per image. An image-only send carries no text part; some
// providers reject multipart payloads with an empty text part. Images
// go to durable storage first, with an inline fallback when the
// upload fails.
func (s *Service) buildUserMessage(ctx context.Context, text string, files []attachment.ProcessedFile) chat.Message {
	msg := chat.Message{Role: chat.RoleUser, DisplayContent: text}
	if len(files) == 0 {
		return msg
	}

	payload := text
	var imageParts []chat.ContentPart
	for _, f := range files {
		switch f.Kind {
		case attachment.KindText:
			payload += fmt.Sprintf("\n\n--- %s ---\n%s", f.Name, f.Content)
		case attachment.KindImage:
			imageParts = append(imageParts, chat.ContentPart{
				Type:     chat.PartImageURL,
				ImageURL: s.persistImage(ctx, f),
			})
		}
	}

	var parts []chat.ContentPart
	if payload != "" {
		parts = append(parts, chat.ContentPart{Type: chat.PartText, Text: payload})
	}
	msg.Parts = append(parts, imageParts...)
	return msg
}

// persistImage uploads an inline-encoded image and returns its durable
// URL; on any failure the inline form is kept, accepting that it will
// not survive a session restore.
func (s *Service) persistImage(ctx context.Context, f attachment.ProcessedFile) string {
	if s.blobs == nil {
		return f.Content
	}

	mime, raw, err := storage.DecodeDataURL(f.Content)
	if err != nil {
		log.Printf("[orchestrator] cannot decode image %s for upload: %v", f.Name, err)
		return f.Content
	}

	url, err := s.blobs.Put(ctx, raw, f.Name, mime)
	if err != nil {
		log.Printf("[orchestrator] upload failed for %s, keeping inline: %v", f.Name, err)
		return f.Content
	}
	return url
}

// buildHistory converts the whole session, newest turn included, into
// the provider message list behind a fixed system instruction.
func (s *Service) buildHistory(sess *chat.Session) []*schema.Message {
	history := make([]*schema.Message, 0, len(sess.Messages)+1)
	history = append(history, schema.SystemMessage(ai.BuildSystemPrompt(sess.ModificationMode, sess.FinalSpec)))
	for _, m := range sess.Messages {
		history = append(history, toSchemaMessage(m))
	}
	return history
}

func toSchemaMessage(m chat.Message) *schema.Message {
	role := schema.User
	switch m.Role {
	case chat.RoleAssistant:
		role = schema.Assistant
	case chat.RoleSystem:
		role = schema.System
	}

	out := &schema.Message{Role: role}
	if len(m.Parts) == 0 {
		out.Content = m.DisplayContent
		return out
	}

	out.MultiContent = make([]schema.ChatMessagePart, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case chat.PartText:
			out.MultiContent = append(out.MultiContent, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case chat.PartImageURL:
			out.MultiContent = append(out.MultiContent, schema.ChatMessagePart{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: p.ImageURL},
			})
		}
	}
	return out
}
