package pipeline

import (
	"context"
	"fmt"
	"sync"

	"talentline/internal/domain"
)

const DefaultPageSize = 10

// Fetcher lists one department's candidates at one stage.
type Fetcher interface {
	ListCandidates(ctx context.Context, department string, stage domain.Stage, page, pageSize int) (domain.CandidatePage, error)
}

// Board is the reviewer's view of one department and stage: the fetched page,
// the active filter and the open reviews.
type Board struct {
	mu         sync.Mutex
	fetcher    Fetcher
	department string
	stage      domain.Stage
	pageSize   int

	page    domain.CandidatePage
	filter  Filter
	visible []domain.Candidate
	reviews map[string]*Review
}

func NewBoard(f Fetcher, department string, stage domain.Stage, pageSize int) *Board {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Board{
		fetcher:    f,
		department: department,
		stage:      stage,
		pageSize:   pageSize,
		reviews:    map[string]*Review{},
	}
}

func (b *Board) Department() string { return b.department }

func (b *Board) Stage() domain.Stage { return b.stage }

// Load fetches a page and re-applies the current filter. Reviews for
// candidates no longer on the page are dropped. On error the previous page
// stays in place.
func (b *Board) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	res, err := b.fetcher.ListCandidates(ctx, b.department, b.stage, page, b.pageSize)
	if err != nil {
		return fmt.Errorf("load %s/%s page %d: %w", b.department, b.stage, page, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = res
	present := make(map[string]bool, len(res.Items))
	for _, c := range res.Items {
		present[c.ApplicantID] = true
	}
	for id := range b.reviews {
		if !present[id] {
			delete(b.reviews, id)
		}
	}
	b.refilter()
	return nil
}

func (b *Board) SetFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
	b.refilter()
}

func (b *Board) refilter() {
	b.visible = Select(b.page.Items, b.filter)
}

func (b *Board) Visible() []domain.Candidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Candidate(nil), b.visible...)
}

func (b *Board) Pagination() domain.Pagination {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.Pagination
}

// Review returns the open review for a candidate on the page, creating it on
// first use so a sent review stays sent until the next Load.
func (b *Board) Review(applicantID string, opts ...ReviewOption) (*Review, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.reviews[applicantID]; ok {
		return r, nil
	}
	for _, c := range b.page.Items {
		if c.ApplicantID != applicantID {
			continue
		}
		r, err := NewReview(c, opts...)
		if err != nil {
			return nil, err
		}
		b.reviews[applicantID] = r
		return r, nil
	}
	return nil, fmt.Errorf("candidate %s is not on the loaded page", applicantID)
}
