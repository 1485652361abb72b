// Package engine evaluates fetched messages exactly once: a durable
// marker gates each (owner, uid) pair, eligible messages become work
// items on the external board, and everything evaluated is marked so
// the next cycle skips it.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lagrafica/mailboard/internal/board"
	"github.com/lagrafica/mailboard/internal/classify"
	"github.com/lagrafica/mailboard/internal/model"
	"github.com/lagrafica/mailboard/internal/store"
)

// Engine runs the dedup and auto-create step of the pipeline. A mutex
// serializes cycles so the background scheduler and a foreground
// invocation never interleave marker writes.
type Engine struct {
	store  store.Store
	board  board.Creator
	logger *log.Logger

	mu sync.Mutex
}

// New creates an Engine. The board creator may be nil, in which case
// eligible messages are classified and marked but no work items are
// submitted.
func New(s store.Store, b board.Creator, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: s, board: b, logger: logger.With("component", "engine")}
}

// CycleStats summarizes one evaluation pass over a message batch.
type CycleStats struct {
	Evaluated int `json:"evaluated"`
	Skipped   int `json:"skipped"`
	Created   int `json:"created"`
}

// ProcessBatch evaluates the messages fetched for one mailbox owner.
// Each message is checked against the marker store first; already
// marked messages are skipped without re-classification. A marker
// write failure aborts the rest of the batch so no message can be
// evaluated twice ahead of its marker.
func (e *Engine) ProcessBatch(
	ctx context.Context, owner string, msgs []*model.Message,
) (CycleStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats CycleStats
	for _, msg := range msgs {
		done, err := e.store.IsProcessed(ctx, owner, msg.UID)
		if err != nil {
			return stats, fmt.Errorf("checking marker for %s/%d: %w", owner, msg.UID, err)
		}
		if done {
			stats.Skipped++
			continue
		}

		stats.Evaluated++
		result := classify.Classify(msg.From, msg.Subject+" "+msg.Body)

		if result.AutoCreateEligible() {
			if err := e.createWorkItem(ctx, owner, msg, result); err != nil {
				// The board owns retries for its own outages; the
				// message is still marked so it is evaluated once.
				e.logger.Error("work item creation failed",
					"owner", owner, "uid", msg.UID, "error", err)
			} else {
				stats.Created++
			}
		}

		marker := model.ProcessedMarker{
			Owner:       owner,
			UID:         msg.UID,
			Subject:     msg.Subject,
			MessageID:   msg.MessageID,
			ProcessedAt: time.Now(),
		}
		if err := e.store.MarkProcessed(ctx, marker); err != nil {
			return stats, fmt.Errorf("marking %s/%d: %w", owner, msg.UID, err)
		}
	}

	return stats, nil
}

// createWorkItem builds the work item for an eligible message, submits
// it to the board and records the activity entry.
func (e *Engine) createWorkItem(
	ctx context.Context, owner string, msg *model.Message, result classify.Result,
) error {
	item := model.WorkItem{
		ID:          uuid.New().String(),
		Title:       msg.Subject,
		Description: msg.Body,
		Scope:       result.Scope,
		Assignee:    result.Assignee,
		Origin:      "email",
		SourceOwner: owner,
		SourceUID:   msg.UID,
		CreatedAt:   time.Now(),
	}
	if item.Title == "" {
		item.Title = "(no subject)"
	}

	if e.board != nil {
		if err := e.board.CreateWorkItem(ctx, item); err != nil {
			return err
		}
	}

	e.logger.Info("work item created",
		"owner", owner, "uid", msg.UID,
		"scope", result.Scope, "assignee", result.Assignee)

	activity := model.Activity{
		Kind:  "auto_create",
		Text:  fmt.Sprintf("Created %s work item from %q", result.Scope, item.Title),
		Actor: result.Assignee,
	}
	if err := e.store.LogActivity(ctx, activity); err != nil {
		e.logger.Warn("activity log failed", "error", err)
	}

	return nil
}
