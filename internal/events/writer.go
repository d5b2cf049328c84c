package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the portal server and the decision ledger.
const (
	TypeApplicationSubmitted = "application.submitted"
	TypeCandidateMoved       = "candidate.moved"
	TypeCandidateRejected    = "candidate.rejected"
	TypeNotificationQueued   = "notification.queued"
	TypeDecisionSent         = "decision.sent"
	TypeDecisionFailed       = "decision.failed"
	TypeDecisionPartial      = "decision.partial"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, department, entityKind, entityID, actorID string, payload any) error {
	data, err := w.encode(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,department,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		w.ts(), evtType, nullable(department), entityKind, nullable(entityID), actorID, data)
	return err
}

// AppendDirect writes one event outside of any caller transaction.
func (w Writer) AppendDirect(ctx context.Context, evtType, department, entityKind, entityID, actorID string, payload any) error {
	data, err := w.encode(payload)
	if err != nil {
		return err
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,department,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		w.ts(), evtType, nullable(department), entityKind, nullable(entityID), actorID, data)
	return err
}

func (w Writer) ts() string {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

func (w Writer) encode(payload any) (string, error) {
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
