// Package handler exposes the capture flows and the admin dashboard over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leadcapture/internal/exitintent"
	"leadcapture/internal/intake"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/validation"
	"leadcapture/internal/platform/middleware"
	"leadcapture/internal/reconcile"
	dErrors "leadcapture/pkg/domain-errors"
	"leadcapture/pkg/platform/httputil"
	"leadcapture/pkg/requestcontext"
)

const headerSessionID = "X-Session-ID"

type IntakeService interface {
	Start(ctx context.Context) (*intake.Session, error)
	Get(ctx context.Context, id string) (*intake.Session, error)
	Answer(ctx context.Context, id, value string) (*intake.Session, error)
}

type ExitIntentService interface {
	Arm(ctx context.Context, sessionID string) (bool, error)
	Trigger(ctx context.Context, sessionID string, reason exitintent.Reason, userAgent string) (bool, error)
	Submit(ctx context.Context, sessionID, name, email, phone string) (models.LeadRecord, error)
}

type LeadService interface {
	Refresh(ctx context.Context) reconcile.Result
	DeleteLocal(ctx context.Context, sessionKey, id string) (reconcile.DeleteOutcome, error)
}

type Handler struct {
	intake     IntakeService
	exitIntent ExitIntentService
	leads      LeadService
	validator  middleware.SessionValidator
	logger     *slog.Logger
	now        func() time.Time
	// throttle wraps the public POST routes when set.
	throttle func(http.Handler) http.Handler
}

func New(
	intakeSvc IntakeService,
	exitSvc ExitIntentService,
	leadSvc LeadService,
	validator middleware.SessionValidator,
	logger *slog.Logger) *Handler {
	return &Handler{
		intake:     intakeSvc,
		exitIntent: exitSvc,
		leads:      leadSvc,
		validator:  validator,
		logger:     logger,
		now:        time.Now,
	}
}

// WithThrottle wraps the public write routes with mw.
func (h *Handler) WithThrottle(mw func(http.Handler) http.Handler) *Handler {
	h.throttle = mw
	return h
}

// Register mounts the public /api routes and the gated /admin/leads routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/intake/{id}", h.handleGetIntake)
		r.Get("/exit-intent/arm", h.handleArm)

		r.Group(func(r chi.Router) {
			if h.throttle != nil {
				r.Use(h.throttle)
			}
			r.Post("/intake", h.handleStartIntake)
			r.Post("/intake/{id}/answer", h.handleAnswer)
			r.Post("/exit-intent/trigger", h.handleTrigger)
			r.Post("/exit-intent/submit", h.handleExitIntentSubmit)
		})
	})

	r.Route("/admin/leads", func(r chi.Router) {
		r.Use(middleware.RequireAdminSession(h.validator, h.logger))
		r.Get("/", h.handleListLeads)
		r.Get("/export", h.handleExport)
		r.Delete("/{id}", h.handleDeleteLead)
	})
}

// lang picks the message language: ?lang= wins, then Accept-Language.
func lang(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" {
		return l
	}
	if strings.HasPrefix(r.Header.Get("Accept-Language"), "ar") {
		return "ar"
	}
	return "fr"
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// writeServiceError renders validation failures with a localized message and
// everything else through the shared envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, session *intake.Session) {
	if ve, ok := validation.AsValidationError(err); ok {
		body := toValidationErrorResponse(ve, lang(r))
		if session != nil {
			sr := toSessionResponse(session)
			body.Session = &sr
		}
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, body)
		return
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) || !isCoded(err) {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func isCoded(err error) bool {
	_, ok := dErrors.As(err)
	return ok
}

func (h *Handler) handleStartIntake(w http.ResponseWriter, r *http.Request) {
	sess, err := h.intake.Start(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) handleGetIntake(w http.ResponseWriter, r *http.Request) {
	sess, err := h.intake.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.intake.Answer(r.Context(), chi.URLParam(r, "id"), req.Value)
	if err != nil {
		h.writeServiceError(w, r, err, sess)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleArm(w http.ResponseWriter, r *http.Request) {
	armed, err := h.exitIntent.Arm(r.Context(), r.Header.Get(headerSessionID))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ArmResponse{Armed: armed})
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !h.decode(w, r, &req) {
		return
	}
	fired, err := h.exitIntent.Trigger(r.Context(), r.Header.Get(headerSessionID), exitintent.Reason(req.Reason), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TriggerResponse{Fired: fired})
}

func (h *Handler) handleExitIntentSubmit(w http.ResponseWriter, r *http.Request) {
	var req ExitIntentSubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.exitIntent.Submit(r.Context(), r.Header.Get(headerSessionID), req.Name, req.Email, req.Phone)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, SubmitResponse{ID: rec.ID, Status: "submitted"})
}

func (h *Handler) handleListLeads(w http.ResponseWriter, r *http.Request) {
	res := h.leads.Refresh(r.Context())
	httputil.WriteJSON(w, http.StatusOK, toLeadsResponse(res.Records, res.Warning))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	res := h.leads.Refresh(r.Context())
	if res.Warning != "" {
		w.Header().Set("X-Lead-Warning", "remote-unavailable")
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+reconcile.ExportFilename(h.now()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(reconcile.ToCSV(res.Records))); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

func (h *Handler) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome, err := h.leads.DeleteLocal(ctx, requestcontext.AdminSession(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{Status: string(outcome)})
}
