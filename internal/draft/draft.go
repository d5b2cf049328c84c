// Package draft holds DraftStore backends for in-progress applications.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"talentline/internal/domain"
)

func normKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func encode(rec domain.ApplicationRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return data, nil
}

func decode(data []byte) (domain.ApplicationRecord, error) {
	var rec domain.ApplicationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode draft: %w", err)
	}
	return rec, nil
}

// Memory keeps drafts in process. Records go through JSON like the other
// stores so attachments are dropped the same way.
type Memory struct {
	mu     sync.Mutex
	drafts map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{drafts: map[string][]byte{}}
}

func (m *Memory) Load(ctx context.Context, id string) (domain.ApplicationRecord, bool, error) {
	m.mu.Lock()
	data, ok := m.drafts[normKey(id)]
	m.mu.Unlock()
	if !ok {
		return domain.ApplicationRecord{}, false, nil
	}
	rec, err := decode(data)
	return rec, err == nil, err
}

func (m *Memory) Save(ctx context.Context, id string, rec domain.ApplicationRecord) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[normKey(id)] = data
	return nil
}

func (m *Memory) Clear(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, normKey(id))
	return nil
}
