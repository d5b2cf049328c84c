package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"talentline/internal/domain"
)

const decisionKind = "decision"

// Ledger stores decide-and-send attempts as events so partial commits can be
// found and reconciled later.
type Ledger struct {
	Writer Writer
}

func NewLedger(db *sql.DB) Ledger {
	return Ledger{Writer: Writer{DB: db}}
}

func decisionType(rec domain.DecisionRecord) string {
	switch {
	case rec.Committed():
		return TypeDecisionSent
	case rec.Partial():
		return TypeDecisionPartial
	default:
		return TypeDecisionFailed
	}
}

func (l Ledger) Record(ctx context.Context, rec domain.DecisionRecord) error {
	actor := rec.Actor
	if actor == "" {
		actor = "reviewer"
	}
	return l.Writer.AppendDirect(ctx, decisionType(rec), rec.Department, decisionKind, rec.ApplicantID, actor, rec)
}

// List returns ledger entries newest first. applicantID and onlyPartial narrow
// the result; limit <= 0 means 50.
func (l Ledger) List(ctx context.Context, applicantID string, onlyPartial bool, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT payload_json FROM events WHERE entity_kind=?`
	args := []any{decisionKind}
	if applicantID != "" {
		query += ` AND entity_id=?`
		args = append(args, applicantID)
	}
	if onlyPartial {
		query += ` AND type=?`
		args = append(args, TypeDecisionPartial)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.Writer.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DecisionRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.DecisionRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
