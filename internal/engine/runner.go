package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/dispatch-engine/internal/cache"
	"github.com/example/dispatch-engine/internal/client"
	"github.com/example/dispatch-engine/internal/model"
	"github.com/example/dispatch-engine/internal/render"
	"github.com/example/dispatch-engine/internal/schedule"
	"github.com/example/dispatch-engine/internal/store"
)

// Delivery is the engine's view of the messaging provider.
type Delivery interface {
	SendText(ctx context.Context, instanceID, target, text string) (client.Receipt, error)
	SendImage(ctx context.Context, instanceID, target string, m model.Content) (client.Receipt, error)
	SendVideo(ctx context.Context, instanceID, target string, m model.Content) (client.Receipt, error)
	SendAudio(ctx context.Context, instanceID, target string, m model.Content) (client.Receipt, error)
	SendFile(ctx context.Context, instanceID, target string, m model.Content) (client.Receipt, error)
	DeleteMessage(ctx context.Context, instanceID, conversationID, messageID string) error
	ConversationAddress(phone string) string
}

// Runner advances one dispatch by exactly one contact per invocation.
// Working one contact at a time keeps schedule windows and pause requests
// honored between contacts, and bounds the loss from a crash to one
// in-flight send.
type Runner struct {
	store    store.Store
	delivery Delivery
	eval     *schedule.Evaluator
	metrics  *Metrics
	log      zerolog.Logger

	receipts cache.ReceiptCache

	// Overridable in tests to avoid wall-clock pacing.
	pacing func(model.Speed) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(st store.Store, delivery Delivery, eval *schedule.Evaluator, m *Metrics, log zerolog.Logger) *Runner {
	return &Runner{
		store:    st,
		delivery: delivery,
		eval:     eval,
		metrics:  m,
		log:      log.With().Str("component", "runner").Logger(),
		pacing:   PacingDelay,
		sleep:    sleepCtx,
	}
}

// WithReceiptCache enables receipt recording after successful sends.
func (r *Runner) WithReceiptCache(c cache.ReceiptCache) *Runner {
	r.receipts = c
	return r
}

// Advance performs one unit of work for the dispatch. Transient conditions
// (missing rows, closed windows, a cursor advanced by a lagging unit of
// work) abort silently and are retried by a later tick. Per-contact send
// failures are counted into failed and swallowed here. Only store errors
// propagate.
func (r *Runner) Advance(ctx context.Context, id, ownerID string) error {
	d, err := r.store.GetDispatch(ctx, id, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch dispatch: %w", err)
	}
	if d.Status != model.StatusRunning {
		return nil
	}

	if d.Schedule != nil && !r.eval.Eligible(d) {
		// Left running; the tick demotes to paused when the window closed.
		return nil
	}

	cursor := d.Cursor()
	if cursor >= d.Stats.Total {
		return r.complete(ctx, d)
	}

	tmpl, err := r.store.GetTemplate(ctx, d.TemplateID, d.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Warn().Str("dispatch", d.ID).Str("template", d.TemplateID).Msg("template missing, retrying next tick")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch template: %w", err)
	}
	if d.InstanceID == "" {
		return r.fail(ctx, d, "dispatch has no messaging instance")
	}

	// Freshest-cursor check: a lagging unit of work from a prior tick may
	// have advanced the dispatch while we were validating.
	fresh, err := r.store.GetDispatch(ctx, id, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refetch dispatch: %w", err)
	}
	if fresh.Cursor() > cursor || fresh.Status != model.StatusRunning {
		return nil
	}

	contact := d.Contacts[cursor]
	receipt, sendErr := r.sendContact(ctx, d, tmpl, contact)

	var delta store.StatsDelta
	if sendErr != nil {
		delta.Failed = 1
		r.metrics.MessagesFailed.Inc()
		r.log.Warn().Err(sendErr).
			Str("dispatch", d.ID).
			Int("contact", cursor).
			Msg("send failed")
	} else {
		delta.Sent = 1
		r.metrics.MessagesSent.Inc()
		r.recordReceipt(ctx, d.ID, cursor, receipt)
		r.scheduleAutoDelete(d, receipt)
	}

	updated, err := r.store.IncrementStats(ctx, id, ownerID, delta)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("increment stats: %w", err)
	}

	if updated.Exhausted() {
		return r.complete(ctx, updated)
	}

	// Pacing suspends only this dispatch's unit of work; the tick loop and
	// other dispatches keep going.
	_ = r.sleep(ctx, r.pacing(d.Settings.Speed))
	return nil
}

func (r *Runner) sendContact(ctx context.Context, d *model.Dispatch, tmpl *model.Template, contact model.ContactData) (client.Receipt, error) {
	vars := render.Vars(contact, d.Name)
	target := r.delivery.ConversationAddress(contactPhone(contact))

	if tmpl.Type == model.TemplateSequence {
		return r.sendSequence(ctx, d, render.Steps(tmpl.Steps, vars), target)
	}
	return r.sendOne(ctx, d.InstanceID, tmpl.Type, render.Content(tmpl.Content, vars), target)
}

// sendSequence sends steps strictly in order. Each step after the first
// sleeps its configured delay first, and targets the ConversationID from
// the previous step's receipt so later steps follow the provider's
// canonical conversation even when it differs from the local address.
func (r *Runner) sendSequence(ctx context.Context, d *model.Dispatch, steps []model.SequenceStep, target string) (client.Receipt, error) {
	var last client.Receipt
	for i, step := range steps {
		if i > 0 {
			if err := r.sleep(ctx, step.DelayDuration()); err != nil {
				return last, fmt.Errorf("sequence step %d: %w", i, err)
			}
		}
		receipt, err := r.sendOne(ctx, d.InstanceID, step.Type, step.Content, target)
		if err != nil {
			return last, fmt.Errorf("sequence step %d: %w", i, err)
		}
		last = receipt
		if receipt.ConversationID != "" {
			target = receipt.ConversationID
		}
	}
	return last, nil
}

func (r *Runner) sendOne(ctx context.Context, instanceID string, typ model.TemplateType, content model.Content, target string) (client.Receipt, error) {
	switch typ {
	case model.TemplateText:
		return r.delivery.SendText(ctx, instanceID, target, content.Text)
	case model.TemplateImage, model.TemplateImageCaption:
		return r.delivery.SendImage(ctx, instanceID, target, content)
	case model.TemplateVideo, model.TemplateVideoCaption:
		return r.delivery.SendVideo(ctx, instanceID, target, content)
	case model.TemplateAudio:
		return r.delivery.SendAudio(ctx, instanceID, target, content)
	case model.TemplateFile:
		return r.delivery.SendFile(ctx, instanceID, target, content)
	default:
		return client.Receipt{}, fmt.Errorf("%w: %q", model.ErrUnknownTemplateType, typ)
	}
}

// scheduleAutoDelete fires a deferred delete-for-everyone keyed by the
// receipt. Failures are logged and never touch dispatch stats.
func (r *Runner) scheduleAutoDelete(d *model.Dispatch, receipt client.Receipt) {
	if !d.Settings.AutoDelete || d.Settings.DeleteDelay <= 0 {
		return
	}
	delay := d.Settings.DeleteDelayUnit.Duration(d.Settings.DeleteDelay)
	instanceID := d.InstanceID
	dispatchID := d.ID

	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.delivery.DeleteMessage(ctx, instanceID, receipt.ConversationID, receipt.MessageID); err != nil {
			r.log.Warn().Err(err).
				Str("dispatch", dispatchID).
				Str("message", receipt.MessageID).
				Msg("auto-delete failed")
		}
	})
}

func (r *Runner) recordReceipt(ctx context.Context, dispatchID string, contactIndex int, receipt client.Receipt) {
	if r.receipts == nil {
		return
	}
	if err := r.receipts.StoreReceipt(ctx, dispatchID, contactIndex, receipt, time.Now()); err != nil {
		r.log.Warn().Err(err).Str("dispatch", dispatchID).Msg("failed to cache receipt")
	}
}

func (r *Runner) complete(ctx context.Context, d *model.Dispatch) error {
	now := time.Now().UTC()
	status := model.StatusCompleted
	_, err := r.store.UpdateDispatch(ctx, d.ID, d.OwnerID, store.Patch{
		Status:      &status,
		CompletedAt: &now,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete dispatch: %w", err)
	}
	r.metrics.DispatchesCompleted.Inc()
	r.log.Info().Str("dispatch", d.ID).
		Int("sent", d.Stats.Sent).
		Int("failed", d.Stats.Failed).
		Msg("dispatch completed")
	return nil
}

func (r *Runner) fail(ctx context.Context, d *model.Dispatch, reason string) error {
	status := model.StatusFailed
	_, err := r.store.UpdateDispatch(ctx, d.ID, d.OwnerID, store.Patch{Status: &status})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fail dispatch: %w", err)
	}
	r.metrics.DispatchesFailed.Inc()
	r.log.Error().Str("dispatch", d.ID).Str("reason", reason).Msg("dispatch failed")
	return nil
}

func contactPhone(c model.ContactData) string {
	if c.FormattedPhone != "" {
		return c.FormattedPhone
	}
	return c.Phone
}

// sleepCtx pauses for d but returns early when ctx is cancelled, so engine
// shutdown is not held up by pacing.
func sleepCtx(ctx context.Context, d time.Duration) error {
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
