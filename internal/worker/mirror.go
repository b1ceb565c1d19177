// Package worker copies confirmed expense changes from the primary store into
// a secondary one, such as a Google Sheets mirror used for reporting.
package worker

import (
	"context"
	"fmt"

	"agrogestion/internal/amqp"
	"agrogestion/internal/log"
	"agrogestion/internal/store"
)

// Mirror applies change messages to target by reading the current record
// from source. Messages carry ids only, so the mirror always converges on
// what source holds now, whatever order the messages arrive in.
type Mirror struct {
	source store.ExpenseStore
	target store.ExpenseStore
	logger *log.Logger
}

func NewMirror(source, target store.ExpenseStore, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Nop()
	}
	return &Mirror{source: source, target: target, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleChange is an amqp consumer handler. Transient store errors are
// returned so the broker redelivers; rejected writes are logged and dropped.
func (m *Mirror) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	logger := m.logger.With(
		log.FieldOperation, msg.Op,
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldOwnerID, msg.OwnerID)

	err := m.apply(ctx, msg)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "Mirrored change")
		return nil
	case store.IsTransient(err):
		logger.WarnContext(ctx, "Mirror store unavailable, will retry", log.FieldError, err)
		return err
	default:
		logger.ErrorContext(ctx, "Dropping change the mirror cannot apply", log.FieldError, err)
		return nil
	}
}

func (m *Mirror) apply(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.ExpenseID == "" || msg.OwnerID == "" {
		return fmt.Errorf("%w: change without expense or owner id", store.ErrRejected)
	}
	if msg.Op == log.OpDelete {
		return m.deleteFromTarget(ctx, msg.ExpenseID)
	}

	current, err := m.source.ListByOwner(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	for _, e := range current {
		if e.ID == msg.ExpenseID {
			if err := m.target.Upsert(ctx, e); err != nil {
				return fmt.Errorf("upsert mirror: %w", err)
			}
			return nil
		}
	}
	// Removed again before we got here.
	return m.deleteFromTarget(ctx, msg.ExpenseID)
}

func (m *Mirror) deleteFromTarget(ctx context.Context, id string) error {
	if err := m.target.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete from mirror: %w", err)
	}
	return nil
}

// ResyncResult counts what Resync changed in the mirror.
type ResyncResult struct {
	Upserted int
	Deleted  int
}

// Resync makes the mirror hold exactly owner's source expenses. It recovers
// from changes the worker missed while it was down.
func (m *Mirror) Resync(ctx context.Context, ownerID string) (ResyncResult, error) {
	var res ResyncResult
	want, err := m.source.ListByOwner(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("read source: %w", err)
	}
	have, err := m.target.ListByOwner(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("read mirror: %w", err)
	}

	inSource := make(map[string]bool, len(want))
	for _, e := range want {
		inSource[e.ID] = true
	}
	for _, e := range have {
		if inSource[e.ID] {
			continue
		}
		if err := m.deleteFromTarget(ctx, e.ID); err != nil {
			return res, err
		}
		res.Deleted++
	}
	for _, e := range want {
		if err := m.target.Upsert(ctx, e); err != nil {
			return res, fmt.Errorf("upsert mirror: %w", err)
		}
		res.Upserted++
	}

	m.logger.InfoContext(ctx, "Mirror resynced",
		log.FieldOwnerID, ownerID,
		"upserted", res.Upserted,
		"deleted", res.Deleted)
	return res, nil
}
