package intake

import (
	"time"

	"github.com/google/uuid"

	"github.com/altamedica/platform-api/internal/platform/ai"
)

// Status is the intake session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is a guided pre-consultation interview. The transcript alternates
// assistant questions and patient answers; when the assistant decides it
// has enough, the session completes with a clinician-facing summary.
type Session struct {
	ID         uuid.UUID    `json:"id"`
	PatientID  string       `json:"patient_id"`
	Status     Status       `json:"status"`
	Transcript []ai.Message `json:"transcript"`
	Summary    string       `json:"summary,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// LastQuestion returns the most recent assistant turn, or "" when the
// transcript has none.
func (s *Session) LastQuestion() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == ai.RoleAssistant {
			return s.Transcript[i].Content
		}
	}
	return ""
}
