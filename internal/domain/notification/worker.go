package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"smartmsg/internal/common"
	"smartmsg/internal/domain/message"
	"smartmsg/internal/resilience"
)

// Dispatcher is the slice of the dispatch engine the worker needs.
// message.Engine satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, target message.Target, params message.RenderParams) (message.MessageHandle, error)
}

// Worker processes dispatch tasks from the queue.
// It picks up a task, fetches the log from the store, renders and sends the
// message through the dispatch engine, and updates the log status. Sends
// are wrapped in an in-process retry for transient transport blips; asynq's
// own retry handles the longer outages.
type Worker struct {
	store      DispatchStore
	dispatcher Dispatcher
	retryCfg   resilience.RetryConfig
}

// NewWorker creates a new dispatch worker.
func NewWorker(store DispatchStore, dispatcher Dispatcher, retryCfg resilience.RetryConfig) *Worker {
	return &Worker{
		store:      store,
		dispatcher: dispatcher,
		retryCfg:   retryCfg,
	}
}

// ProcessTask handles a dispatch task from the queue.
func (w *Worker) ProcessTask(ctx context.Context, logID string) error {
	start := time.Now()

	// Fetch the dispatch log
	dispatchLog, err := w.store.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("fetching dispatch log %s: %w", logID, err)
	}

	if dispatchLog == nil {
		slog.Error("dispatch log not found", "log_id", logID)
		return fmt.Errorf("dispatch log not found: %s", logID)
	}

	// Update status to processing
	if err := w.store.UpdateStatus(ctx, logID, StatusProcessing, 0, ""); err != nil {
		slog.Error("failed to update status to processing", "log_id", logID, "error", err)
	}

	params, err := renderParams(dispatchLog)
	if err != nil {
		_ = w.store.UpdateStatus(ctx, logID, StatusFailed, 0, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// The boundary logs every exhausted dispatch under one label and
	// reraises, so the failure still drives the status update below.
	target := message.Target{ChatID: dispatchLog.ChatID}
	boundary := resilience.BoundaryPolicy{Label: "DISPATCH", Reraise: true}
	handle, err := resilience.Guard(ctx, boundary, message.MessageHandle{}, func(ctx context.Context) (message.MessageHandle, error) {
		return resilience.Retry(ctx, w.retryCfg, func(ctx context.Context) (message.MessageHandle, error) {
			return w.dispatcher.Send(ctx, target, params)
		})
	})
	if err != nil {
		_ = w.store.UpdateStatus(ctx, logID, StatusFailed, 0, err.Error())

		slog.Error("dispatch failed",
			"log_id", logID,
			"chat_id", dispatchLog.ChatID,
			"error", err,
			"duration", time.Since(start),
		)
		if common.IsPermanent(err) {
			// A template or context bug — re-running the task cannot fix it.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	// Update log with success
	if err := w.store.UpdateStatus(ctx, logID, StatusSent, handle.MessageID, ""); err != nil {
		slog.Error("failed to update status to sent", "log_id", logID, "error", err)
	}

	slog.Info("dispatch sent",
		"log_id", logID,
		"chat_id", dispatchLog.ChatID,
		"message_id", handle.MessageID,
		"duration", time.Since(start),
	)

	return nil
}

// renderParams maps a dispatch log to engine render parameters. Plain text
// dispatches ride the same pipeline via an override block.
func renderParams(log *DispatchLog) (message.RenderParams, error) {
	if log.Smart != nil {
		return message.RenderParams{
			Module:    log.Smart.Module,
			Role:      log.Smart.Role,
			Namespace: log.Smart.Namespace,
			Lang:      log.Smart.Lang,
			File:      log.Smart.MenuFile,
			BlockKey:  log.Smart.BlockKey,
			Context:   log.Smart.Context,
		}, nil
	}
	if log.Text != "" {
		return message.RenderParams{
			OverrideBlock: &message.TemplateBlock{Text: log.Text},
		}, nil
	}
	return message.RenderParams{}, common.NewValidationError("dispatch log has neither text nor smart data")
}
