package repo

import (
	"context"
	"database/sql"
	"time"
)

func (r Repo) UpsertDraft(ctx context.Context, identity string, recordJSON []byte, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO drafts(identity,record_json,updated_at) VALUES (?,?,?)
ON CONFLICT(identity) DO UPDATE SET record_json=excluded.record_json, updated_at=excluded.updated_at`,
		identity, string(recordJSON), formatTime(at))
	return err
}

func (r Repo) GetDraft(ctx context.Context, identity string) ([]byte, time.Time, error) {
	var payload, updated string
	err := r.DB.QueryRowContext(ctx, `SELECT record_json, updated_at FROM drafts WHERE identity=?`, identity).Scan(&payload, &updated)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(payload), parseTime(updated), nil
}

func (r Repo) DeleteDraft(ctx context.Context, identity string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM drafts WHERE identity=?`, identity)
	return err
}
