package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"talentline/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 10, 30, 0, 0, time.UTC)
}

func fiveCandidates() []domain.Candidate {
	return []domain.Candidate{
		{ApplicantID: "1", Name: "Anita Sharma", Email: "anita@corp.in", JobTitle: "Engineer", JobType: "Full-time", Gender: "Female", AppliedAt: day(1)},
		{ApplicantID: "2", Name: "Ravi Kumar", Email: "ravi@corp.in", JobTitle: "Engineer", JobType: "Intern", Gender: "Male", AppliedAt: day(2)},
		{ApplicantID: "3", Name: "Meera Nair", Email: "meera@mail.com", JobTitle: "Designer", JobType: "Full-time", Gender: "Female", AppliedAt: day(3)},
		{ApplicantID: "4", Name: "Sana Khan", Email: "sana@mail.com", JobTitle: "Engineer", JobType: "Full-time", Gender: "Female", AppliedAt: day(4)},
		{ApplicantID: "5", Name: "John Dsouza", Email: "john@corp.in", JobTitle: "Analyst", JobType: "Intern", Gender: "Male", AppliedAt: day(5)},
	}
}

func ids(cs []domain.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ApplicantID)
	}
	return out
}

func TestSelect(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"gender and title", Filter{Gender: "Female", JobTitle: "Engineer"}, []string{"1", "4"}},
		{"name substring folds case", Filter{Name: "SHARMA"}, []string{"1"}},
		{"email substring", Filter{Email: "corp.in"}, []string{"1", "2", "5"}},
		{"job type", Filter{JobType: "intern"}, []string{"2", "5"}},
		{"title is exact not substring", Filter{JobTitle: "Engine"}, []string{}},
		{"date range inclusive", Filter{AppliedFrom: day(2), AppliedTo: time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)}, []string{"2", "3", "4"}},
		{"from only", Filter{AppliedFrom: day(4)}, []string{"4", "5"}},
		{"and across all", Filter{Gender: "Male", Email: "corp", AppliedTo: day(2)}, []string{"2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Select(fiveCandidates(), tc.filter)))
		})
	}
}

func TestFilterEmpty(t *testing.T) {
	assert.True(t, Filter{Name: "  "}.Empty())
	assert.False(t, Filter{AppliedTo: day(1)}.Empty())
}
