package draft

import (
	"context"
	"errors"
	"time"

	"talentline/internal/domain"
	"talentline/internal/repo"
)

// SQLite keeps drafts in the local workspace database.
type SQLite struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (s SQLite) Load(ctx context.Context, id string) (domain.ApplicationRecord, bool, error) {
	data, _, err := s.Repo.GetDraft(ctx, normKey(id))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ApplicationRecord{}, false, nil
	}
	if err != nil {
		return domain.ApplicationRecord{}, false, err
	}
	rec, err := decode(data)
	return rec, err == nil, err
}

func (s SQLite) Save(ctx context.Context, id string, rec domain.ApplicationRecord) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Repo.UpsertDraft(ctx, normKey(id), data, now())
}

func (s SQLite) Clear(ctx context.Context, id string) error {
	return s.Repo.DeleteDraft(ctx, normKey(id))
}
