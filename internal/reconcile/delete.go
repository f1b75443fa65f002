package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/models"
	dErrors "leadcapture/pkg/domain-errors"
)

// DeleteOutcome is the result of one delete click.
type DeleteOutcome string

const (
	DeletePending DeleteOutcome = "pending_confirmation"
	DeleteDone    DeleteOutcome = "deleted"
)

var ErrRemoteReadOnly = errors.New("remote records are read-only")

const pendingKeyPrefix = "delete_pending:"

type pendingDelete struct {
	ID      string    `json:"id"`
	ArmedAt time.Time `json:"armed_at"`
}

// DeleteLocal is a two-step delete scoped to the admin session. The first call
// for an id arms it; a second call for the same id within the window removes
// the record. A different id, or a call after the window, re-arms.
func (r *Reconciler) DeleteLocal(ctx context.Context, sessionKey, id string) (DeleteOutcome, error) {
	if models.IsRemoteID(id) {
		return "", dErrors.Wrap(ErrRemoteReadOnly, dErrors.CodeForbidden, "spreadsheet records cannot be deleted here")
	}
	if sessionKey == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing admin session")
	}
	if !r.local.Exists(ctx, id) {
		return "", dErrors.New(dErrors.CodeNotFound, "lead not found")
	}

	key := pendingKeyPrefix + sessionKey
	now := r.now()

	armed, err := r.loadPending(ctx, key)
	if err != nil {
		return "", err
	}
	if armed != nil && armed.ID == id && now.Sub(armed.ArmedAt) < r.deleteWindow {
		if err := r.local.Remove(ctx, id); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete lead")
		}
		if err := r.pending.Delete(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "failed to clear pending delete", "error", err)
		}
		r.logger.InfoContext(ctx, "local lead deleted", "lead_id", id)
		return DeleteDone, nil
	}

	raw, err := json.Marshal(pendingDelete{ID: id, ArmedAt: now})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to arm delete")
	}
	if err := r.pending.Set(ctx, key, raw, r.deleteWindow); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to arm delete")
	}
	return DeletePending, nil
}

func (r *Reconciler) loadPending(ctx context.Context, key string) (*pendingDelete, error) {
	raw, err := r.pending.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pending delete")
	}
	var p pendingDelete
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil
	}
	return &p, nil
}
