package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/capture"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/validation"
	"leadcapture/internal/platform/metrics"
	dErrors "leadcapture/pkg/domain-errors"
	"leadcapture/pkg/requestcontext"
)

const keyPrefix = "wizard:"

// Recorder performs the dual write for a finished wizard.
type Recorder interface {
	Record(ctx context.Context, fields models.Fields, path string) models.LeadRecord
}

// Session is a wizard persisted between HTTP calls.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Wizard
}

type Service struct {
	kv          kv.Store
	recorder    Recorder
	ttl         time.Duration
	submitDelay time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithSubmitDelay(d time.Duration) Option {
	return func(s *Service) {
		s.submitDelay = d
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(store kv.Store, recorder Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		kv:          store,
		recorder:    recorder,
		ttl:         24 * time.Hour,
		submitDelay: 1500 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Start opens a new wizard session.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: requestcontext.Now(ctx).UTC(),
		Wizard:    NewWizard(),
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode wizard session")
	}
	if err := s.kv.Set(ctx, sessionKey(sess.ID), raw, s.ttl); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save wizard session")
	}
	return sess, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "wizard session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wizard session")
	}
	return decodeSession(raw)
}

func decodeSession(raw []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt wizard session")
	}
	return &sess, nil
}

var errSessionMissing = errors.New("wizard session missing")

// Answer submits value for the session's current step. A rejected answer is
// persisted on the session and returned as a validation error. The final
// accepted answer records the lead and waits the submit delay before the
// session is marked submitted.
func (s *Service) Answer(ctx context.Context, id, value string) (*Session, error) {
	var (
		sess      *Session
		submitErr error
	)
	err := s.kv.Update(ctx, sessionKey(id), func(current []byte, found bool) ([]byte, error) {
		if !found {
			return nil, errSessionMissing
		}
		loaded, err := decodeSession(current)
		if err != nil {
			return nil, err
		}
		submitErr = loaded.Submit(value)
		if errors.Is(submitErr, ErrWizardComplete) {
			return nil, submitErr
		}
		sess = loaded
		return json.Marshal(loaded)
	})
	switch {
	case errors.Is(err, errSessionMissing):
		return nil, dErrors.New(dErrors.CodeNotFound, "wizard session not found")
	case errors.Is(err, ErrWizardComplete):
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, "wizard already submitted")
	case err != nil:
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wizard session")
	}

	if ve, ok := validation.AsValidationError(submitErr); ok {
		s.metrics.IncValidationFailure(string(ve.Field), ve.Code())
		return sess, dErrors.Wrap(ve, dErrors.CodeValidation, "")
	}
	if sess.Status != StatusSubmitting {
		return sess, nil
	}
	return s.finish(ctx, sess)
}

func (s *Service) finish(ctx context.Context, sess *Session) (*Session, error) {
	rec := s.recorder.Record(ctx, sess.Answers, capture.PathWizard)
	s.logger.InfoContext(ctx, "wizard submitted",
		"session_id", sess.ID,
		"lead_id", rec.ID,
	)

	// The visitor sees the spinner for at least submitDelay. The lead is
	// already recorded, so a cancelled request still completes the session.
	if err := sleep(ctx, s.submitDelay); err != nil {
		s.logger.DebugContext(ctx, "submit delay interrupted", "session_id", sess.ID, "error", err)
	}

	saveCtx := context.WithoutCancel(ctx)
	err := s.kv.Update(saveCtx, sessionKey(sess.ID), func(current []byte, found bool) ([]byte, error) {
		if !found {
			return nil, errSessionMissing
		}
		loaded, err := decodeSession(current)
		if err != nil {
			return nil, err
		}
		loaded.MarkSubmitted()
		sess = loaded
		return json.Marshal(loaded)
	})
	if err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("mark submitted: %w", err), dErrors.CodeInternal, "failed to finish wizard session")
	}
	return sess, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
