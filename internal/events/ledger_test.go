package events

import (
	"context"
	"testing"
	"time"

	"talentline/internal/db"
	"talentline/internal/domain"
	"talentline/internal/migrate"
	"talentline/internal/repo"
)

func TestLedgerRecordsAndFiltersPartials(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	l := NewLedger(conn)
	l.Writer.Now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }

	target := domain.StageRound2
	recs := []domain.DecisionRecord{
		{ID: "d1", ApplicantID: "a1", Department: "engineering", FromStage: domain.StageRound1, TargetStage: &target,
			Outcome: domain.OutcomeCleared, Moved: true, Notified: true, Actor: "hr"},
		{ID: "d2", ApplicantID: "a1", Department: "engineering", FromStage: domain.StageRound2,
			Outcome: domain.OutcomeRejected, Moved: true, NotifyError: "smtp down"},
		{ID: "d3", ApplicantID: "a2", Department: "design", FromStage: domain.StageApplied,
			Outcome: domain.OutcomeRejected, MoveError: "offline", NotifyError: "offline"},
	}
	for _, rec := range recs {
		if err := l.Record(ctx, rec); err != nil {
			t.Fatalf("record %s: %v", rec.ID, err)
		}
	}

	all, err := l.List(ctx, "", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "d3" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	partial, err := l.List(ctx, "", true, 10)
	if err != nil {
		t.Fatalf("list partial: %v", err)
	}
	if len(partial) != 1 || partial[0].ID != "d2" || !partial[0].Partial() {
		t.Fatalf("unexpected partial entries %+v", partial)
	}

	forA1, err := l.List(ctx, "a1", false, 10)
	if err != nil || len(forA1) != 2 {
		t.Fatalf("a1 entries = %+v, %v", forA1, err)
	}
	if forA1[1].TargetStage == nil || *forA1[1].TargetStage != domain.StageRound2 {
		t.Fatalf("target stage lost: %+v", forA1[1])
	}

	evts, err := repo.Repo{DB: conn}.LatestEvents(ctx, 10, "", "", decisionKind, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	types := map[string]int{}
	for _, e := range evts {
		types[e.Type]++
		if e.ActorID == "" {
			t.Fatalf("event %d has no actor", e.ID)
		}
	}
	if types[TypeDecisionSent] != 1 || types[TypeDecisionPartial] != 1 || types[TypeDecisionFailed] != 1 {
		t.Fatalf("unexpected event types %v", types)
	}
}
