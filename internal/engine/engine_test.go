package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/lagrafica/mailboard/internal/model"
	"github.com/lagrafica/mailboard/tests/testutil"
)

// fakeBoard records submitted work items and can be made to fail.
type fakeBoard struct {
	items []model.WorkItem
	err   error
}

func (f *fakeBoard) CreateWorkItem(_ context.Context, item model.WorkItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

func TestProcessBatch_AutoCreateGating(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := &fakeBoard{}
	eng := New(s, b, nil)
	ctx := context.Background()

	msgs := []*model.Message{
		// Strict tenders sender: creates.
		{UID: 1, From: "plataforma.contractacio@gencat.cat", Subject: "Nova licitació"},
		// Strict budgets sender: creates.
		{UID: 2, From: "notificaciones-bbva@bbva.com", Subject: "Aviso"},
		// Kit keyword: classifies but never creates.
		{UID: 3, From: "someone@example.com", Subject: "Bono kit digital"},
		// Design keyword: never creates.
		{UID: 4, From: "client@example.com", Subject: "Necesitamos un logo"},
	}

	stats, err := eng.ProcessBatch(ctx, "montse", msgs)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if stats.Evaluated != 4 {
		t.Errorf("evaluated = %d; want 4", stats.Evaluated)
	}
	if stats.Created != 2 {
		t.Errorf("created = %d; want 2", stats.Created)
	}
	if len(b.items) != 2 {
		t.Fatalf("board received %d items; want 2", len(b.items))
	}

	if b.items[0].Scope != model.ScopeTenders || b.items[0].Assignee != "montse" {
		t.Errorf("first item = (%s, %s)", b.items[0].Scope, b.items[0].Assignee)
	}
	if b.items[1].Scope != model.ScopeBudgets || b.items[1].Assignee != "alba" {
		t.Errorf("second item = (%s, %s)", b.items[1].Scope, b.items[1].Assignee)
	}

	for _, item := range b.items {
		if item.ID == "" {
			t.Error("work item missing generated ID")
		}
		if item.Origin != "email" {
			t.Errorf("origin = %q; want email", item.Origin)
		}
		if item.SourceOwner != "montse" {
			t.Errorf("source owner = %q", item.SourceOwner)
		}
	}

	// Every evaluated message got a marker, eligible or not.
	count, err := s.ProcessedCount(ctx)
	if err != nil {
		t.Fatalf("ProcessedCount: %v", err)
	}
	if count != 4 {
		t.Errorf("markers = %d; want 4", count)
	}
}

// Running the same batch twice produces no second work item and no
// duplicate markers.
func TestProcessBatch_SecondCycleIsNoOp(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := &fakeBoard{}
	eng := New(s, b, nil)
	ctx := context.Background()

	msgs := []*model.Message{
		{UID: 10, From: "norespongueu@enotum.cat", Subject: "Notificació"},
		{UID: 11, From: "random@example.com", Subject: "hola"},
	}

	if _, err := eng.ProcessBatch(ctx, "alba", msgs); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	stats, err := eng.ProcessBatch(ctx, "alba", msgs)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if stats.Evaluated != 0 {
		t.Errorf("second cycle evaluated = %d; want 0", stats.Evaluated)
	}
	if stats.Skipped != 2 {
		t.Errorf("second cycle skipped = %d; want 2", stats.Skipped)
	}
	if len(b.items) != 1 {
		t.Errorf("board received %d items across both cycles; want 1", len(b.items))
	}

	count, err := s.ProcessedCount(ctx)
	if err != nil {
		t.Fatalf("ProcessedCount: %v", err)
	}
	if count != 2 {
		t.Errorf("markers = %d; want 2", count)
	}
}

// The same UID under different owners is a different dedup key.
func TestProcessBatch_KeysAreScopedPerOwner(t *testing.T) {
	s := testutil.NewTestStore(t)
	eng := New(s, &fakeBoard{}, nil)
	ctx := context.Background()

	msgs := []*model.Message{{UID: 5, From: "x@example.com", Subject: "hola"}}

	if _, err := eng.ProcessBatch(ctx, "montse", msgs); err != nil {
		t.Fatalf("first owner: %v", err)
	}

	stats, err := eng.ProcessBatch(ctx, "alba", msgs)
	if err != nil {
		t.Fatalf("second owner: %v", err)
	}
	if stats.Evaluated != 1 {
		t.Errorf("evaluated = %d; want 1 (keys are per owner)", stats.Evaluated)
	}
}

// A board outage never blocks the marker: the message is evaluated
// once and only once even when creation failed.
func TestProcessBatch_BoardFailureStillMarks(t *testing.T) {
	s := testutil.NewTestStore(t)
	b := &fakeBoard{err: errors.New("board down")}
	eng := New(s, b, nil)
	ctx := context.Background()

	msgs := []*model.Message{
		{UID: 20, From: "plataforma.contractacio@gencat.cat", Subject: "Licitació"},
	}

	stats, err := eng.ProcessBatch(ctx, "montse", msgs)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if stats.Created != 0 {
		t.Errorf("created = %d; want 0", stats.Created)
	}

	done, err := s.IsProcessed(ctx, "montse", 20)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !done {
		t.Fatal("message not marked after board failure")
	}
}

// A nil board classifies and marks without submitting anywhere.
func TestProcessBatch_NilBoard(t *testing.T) {
	s := testutil.NewTestStore(t)
	eng := New(s, nil, nil)

	msgs := []*model.Message{
		{UID: 30, From: "notificaciones-bbva@bbva.com", Subject: "Aviso"},
	}

	stats, err := eng.ProcessBatch(context.Background(), "alba", msgs)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if stats.Created != 1 {
		t.Errorf("created = %d; want 1", stats.Created)
	}
}
