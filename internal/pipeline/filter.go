package pipeline

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"talentline/internal/domain"
)

// Filter narrows an already-fetched page. Every set field must match; the
// zero Filter matches everything.
type Filter struct {
	Name        string
	Email       string
	JobTitle    string
	JobType     string
	Gender      string
	AppliedFrom time.Time
	AppliedTo   time.Time
}

func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Name) == "" &&
		strings.TrimSpace(f.Email) == "" &&
		strings.TrimSpace(f.JobTitle) == "" &&
		strings.TrimSpace(f.JobType) == "" &&
		strings.TrimSpace(f.Gender) == "" &&
		f.AppliedFrom.IsZero() && f.AppliedTo.IsZero()
}

// matcher holds the folded filter values for one pass.
type matcher struct {
	name, email, title, jobType, gender string
	from, to                            time.Time
	fold                                cases.Caser
}

func (f Filter) matcher() *matcher {
	fold := cases.Fold()
	m := &matcher{fold: fold, from: f.AppliedFrom}
	m.name = m.norm(f.Name)
	m.email = m.norm(f.Email)
	m.title = m.norm(f.JobTitle)
	m.jobType = m.norm(f.JobType)
	m.gender = m.norm(f.Gender)
	m.to = endOfRange(f.AppliedTo)
	return m
}

func (m *matcher) norm(s string) string {
	return m.fold.String(strings.TrimSpace(s))
}

// endOfRange makes a date-only upper bound cover the whole day.
func endOfRange(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	if t.Equal(time.Date(y, mo, d, 0, 0, 0, 0, t.Location())) {
		return time.Date(y, mo, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
	}
	return t
}

func (m *matcher) match(c domain.Candidate) bool {
	if m.name != "" && !strings.Contains(m.norm(c.Name), m.name) {
		return false
	}
	if m.email != "" && !strings.Contains(m.norm(c.Email), m.email) {
		return false
	}
	if m.title != "" && m.norm(c.JobTitle) != m.title {
		return false
	}
	if m.jobType != "" && m.norm(c.JobType) != m.jobType {
		return false
	}
	if m.gender != "" && m.norm(c.Gender) != m.gender {
		return false
	}
	if !m.from.IsZero() && c.AppliedAt.Before(m.from) {
		return false
	}
	if !m.to.IsZero() && c.AppliedAt.After(m.to) {
		return false
	}
	return true
}

func (f Filter) Match(c domain.Candidate) bool {
	return f.matcher().match(c)
}

// Select returns the candidates matching f, in input order.
func Select(cands []domain.Candidate, f Filter) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cands))
	if f.Empty() {
		return append(out, cands...)
	}
	m := f.matcher()
	for _, c := range cands {
		if m.match(c) {
			out = append(out, c)
		}
	}
	return out
}
