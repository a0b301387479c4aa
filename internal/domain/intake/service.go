package intake

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/ai"
	"github.com/altamedica/platform-api/internal/platform/auth"
)

var (
	ErrForbidden = errors.New("not allowed to access this intake session")
	ErrCompleted = errors.New("intake session already completed")
	ErrEmpty     = errors.New("answer must not be empty")
)

// Service runs guided intake interviews. The assistant is injected so tests
// and offline deployments can swap the model out.
type Service struct {
	repo      Repository
	assistant ai.Assistant
	logger    zerolog.Logger
}

func NewService(repo Repository, assistant ai.Assistant, logger zerolog.Logger) *Service {
	return &Service{repo: repo, assistant: assistant, logger: logger}
}

func (s *Service) canAccess(caller *auth.Identity, patientID string) bool {
	if caller == nil {
		return false
	}
	if caller.UID == patientID {
		return true
	}
	return caller.Role.Can(auth.PermReadAnyRecord)
}

// Start opens a session for the patient and returns it with the first
// question already in the transcript.
func (s *Service) Start(ctx context.Context, caller *auth.Identity, patientID string) (*Session, error) {
	if caller == nil || caller.UID != patientID && caller.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}

	question, _, err := s.assistant.NextQuestion(ctx, nil)
	if err != nil {
		return nil, err
	}

	session := &Session{
		PatientID: patientID,
		Status:    StatusActive,
		Transcript: []ai.Message{
			{Role: ai.RoleAssistant, Content: question},
		},
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("session_id", session.ID.String()).
		Str("patient_id", patientID).
		Msg("intake session started")
	return session, nil
}

// Answer records the patient's reply and advances the interview. When the
// assistant decides it is done, the session completes with a summary.
func (s *Service) Answer(ctx context.Context, caller *auth.Identity, sessionID uuid.UUID, text string) (*Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if caller == nil || caller.UID != session.PatientID && caller.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	if session.Status == StatusCompleted {
		return nil, ErrCompleted
	}

	session.Transcript = append(session.Transcript, ai.Message{Role: ai.RoleUser, Content: text})

	question, done, err := s.assistant.NextQuestion(ctx, session.Transcript)
	if err != nil {
		return nil, err
	}
	if done {
		summary, err := s.assistant.Summarize(ctx, session.Transcript)
		if err != nil {
			return nil, err
		}
		session.Status = StatusCompleted
		session.Summary = summary
	} else {
		session.Transcript = append(session.Transcript, ai.Message{Role: ai.RoleAssistant, Content: question})
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	if done {
		s.logger.Info().
			Str("session_id", session.ID.String()).
			Msg("intake session completed")
	}
	return session, nil
}

// Get returns a session readable by the patient themselves or any caller
// with record-read rights.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, sessionID uuid.UUID) (*Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(caller, session.PatientID) {
		return nil, ErrForbidden
	}
	return session, nil
}
