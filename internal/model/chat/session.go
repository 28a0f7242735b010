package chat

import (
	"time"

	"github.com/google/uuid"
)

// Phase tracks where the interview stands.
type Phase string

const (
	PhaseInterview Phase = "interview"
	PhaseComplete  Phase = "complete"
)

// WelcomeMessage opens every fresh session.
const WelcomeMessage = "Bonjour ! Je suis là pour transformer votre idée de produit en " +
	"spécifications structurées. Décrivez-moi votre projet en quelques phrases, " +
	"et je vous poserai des questions pour préciser les points importants. " +
	"Vous pouvez aussi joindre un document ou une image."

// QuestionThreshold gates when the "generate spec" affordance appears.
const QuestionThreshold = 3

// Session is the whole conversational state for one user identity.
// Exactly one instance exists per user; it is only mutated through the
// session service's update operations.
type Session struct {
	UserID             string    `json:"userId"`
	Messages           []Message `json:"messages"`
	Phase              Phase     `json:"phase"`
	QuestionCount      int       `json:"questionCount"`
	FinalSpec          string    `json:"finalSpec,omitempty"`
	ModificationMode   bool      `json:"modificationMode"`
	MessagesAtLastSpec int       `json:"messagesAtLastSpec"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewSession builds the welcome state for a user with no persisted data.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID: userID,
		Messages: []Message{{
			ID:             uuid.NewString(),
			Role:           RoleAssistant,
			DisplayContent: WelcomeMessage,
			CreatedAt:      now,
		}},
		Phase:     PhaseInterview,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a turn and stamps UpdatedAt.
func (s *Session) Append(m Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now().UTC()
}

// CanGenerate reports whether enough interview turns happened for the
// generate-spec affordance.
func (s *Session) CanGenerate() bool {
	return s.QuestionCount >= QuestionThreshold
}

// Clone returns a deep copy safe to hand to the write-behind saver.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}
