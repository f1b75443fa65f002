// Package exitintent fires a one-time signup prompt per visitor session when
// the visitor appears to be leaving, and records the short form it collects.
package exitintent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/capture"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/validation"
	"leadcapture/internal/platform/metrics"
	dErrors "leadcapture/pkg/domain-errors"
	"leadcapture/pkg/requestcontext"
)

// Reason is the browser signal that suggested the visitor is leaving.
type Reason string

const (
	ReasonPointerLeaveTop Reason = "pointer_leave_top"
	ReasonPageHidden      Reason = "page_hidden"
	ReasonBackNavigation  Reason = "back_navigation"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonPointerLeaveTop, ReasonPageHidden, ReasonBackNavigation:
		return true
	}
	return false
}

var (
	ErrNotTriggered     = errors.New("exit intent not triggered for session")
	ErrAlreadySubmitted = errors.New("exit intent form already submitted")
)

const keyPrefix = "exit_intent:"

// state is stored once per session. Its presence means the prompt fired.
type state struct {
	Reason    Reason    `json:"reason"`
	FiredAt   time.Time `json:"fired_at"`
	Submitted bool      `json:"submitted,omitempty"`
}

// Recorder performs the dual write for the short form.
type Recorder interface {
	Record(ctx context.Context, fields models.Fields, path string) models.LeadRecord
}

type Service struct {
	kv       kv.Store
	recorder Recorder
	ttl      time.Duration
	delay    time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithSessionTTL bounds how long the fired flag is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithSubmitDelay sets the minimum time Submit takes.
func WithSubmitDelay(d time.Duration) Option {
	return func(s *Service) {
		s.delay = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(store kv.Store, recorder Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		kv:       store,
		recorder: recorder,
		ttl:      24 * time.Hour,
		delay:    time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func requireSession(sessionID string) error {
	if sessionID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "missing session id")
	}
	return nil
}

// DeviceClass buckets a User-Agent for metrics.
func DeviceClass(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

// Trigger records an exit signal. Only the first signal of a session fires
// the prompt; later ones report false.
func (s *Service) Trigger(ctx context.Context, sessionID string, reason Reason, userAgent string) (bool, error) {
	if err := requireSession(sessionID); err != nil {
		return false, err
	}
	if !reason.Valid() {
		return false, dErrors.New(dErrors.CodeBadRequest, "unknown exit intent reason: "+string(reason))
	}

	raw, err := json.Marshal(state{Reason: reason, FiredAt: requestcontext.Now(ctx).UTC()})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode exit intent state")
	}
	fired, err := s.kv.SetNX(ctx, key(sessionID), raw, s.ttl)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record exit intent")
	}

	device := DeviceClass(userAgent)
	s.metrics.IncExitIntentTrigger(string(reason), device, fired)
	if fired {
		s.logger.InfoContext(ctx, "exit intent fired",
			"reason", reason,
			"device", device,
		)
	}
	return fired, nil
}

// Arm reports whether the page should still install its exit listeners and
// push the synthetic history entry, which is the case until the prompt fires.
func (s *Service) Arm(ctx context.Context, sessionID string) (bool, error) {
	if err := requireSession(sessionID); err != nil {
		return false, err
	}
	_, err := s.kv.Get(ctx, key(sessionID))
	if errors.Is(err, kv.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read exit intent state")
	}
	return false, nil
}

var errMissing = errors.New("exit intent state missing")

// Submit validates and records the short form. The company is fixed to
// models.ExitIntentCompany.
func (s *Service) Submit(ctx context.Context, sessionID, name, email, phone string) (models.LeadRecord, error) {
	if err := requireSession(sessionID); err != nil {
		return models.LeadRecord{}, err
	}
	checks := []struct {
		kind  validation.FieldKind
		value string
	}{
		{validation.FieldName, name},
		{validation.FieldEmail, email},
		{validation.FieldPhone, phone},
	}
	for _, c := range checks {
		if err := validation.Validate(c.kind, c.value); err != nil {
			ve, _ := validation.AsValidationError(err)
			s.metrics.IncValidationFailure(string(ve.Field), ve.Code())
			return models.LeadRecord{}, dErrors.Wrap(ve, dErrors.CodeValidation, "")
		}
	}

	err := s.kv.Update(ctx, key(sessionID), func(current []byte, found bool) ([]byte, error) {
		if !found {
			return nil, errMissing
		}
		var st state
		if err := json.Unmarshal(current, &st); err != nil {
			return nil, err
		}
		if st.Submitted {
			return nil, ErrAlreadySubmitted
		}
		st.Submitted = true
		return json.Marshal(st)
	})
	switch {
	case errors.Is(err, errMissing):
		return models.LeadRecord{}, dErrors.Wrap(ErrNotTriggered, dErrors.CodeInvalidState, "exit intent has not fired for this session")
	case errors.Is(err, ErrAlreadySubmitted):
		return models.LeadRecord{}, dErrors.Wrap(err, dErrors.CodeConflict, "exit intent form already submitted")
	case err != nil:
		return models.LeadRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update exit intent state")
	}

	rec := s.recorder.Record(ctx, models.Fields{
		Name:    name,
		Email:   email,
		Phone:   phone,
		Company: models.ExitIntentCompany,
	}, capture.PathExitIntent)

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return rec, nil
}
