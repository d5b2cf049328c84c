package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"talentline/internal/domain"
	"talentline/internal/draft"
	"talentline/internal/wizard"
)

type nopSubmitter struct{}

func (nopSubmitter) Submit(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	return domain.Confirmation{}, nil
}

func TestFillWizardKeepsChoicesWithCommas(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "record.yaml")
	body := "fullName: Asha Rao\nemail: asha@example.com\ntechSkills:\n  - \"C, C++\"\n  - Go\nlanguages:\n  - English\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	rec, err := readRecord(path, applyFlags{})
	require.NoError(t, err)

	drafts := draft.NewMemory()
	require.NoError(t, drafts.Save(ctx, "asha@example.com", domain.ApplicationRecord{
		TechSkills: domain.NewSet("Java", "Go"),
		Languages:  domain.NewSet("Hindi"),
	}))
	w, err := wizard.New(ctx, domain.JobRef{Title: "Engineer"}, nopSubmitter{},
		wizard.WithDrafts(drafts),
		wizard.WithIdentity(wizard.Identity{Email: "asha@example.com"}),
	)
	require.NoError(t, err)
	require.NoError(t, fillWizard(ctx, w, rec))

	got := w.Record()
	require.Equal(t, []string{"C, C++", "Go"}, got.TechSkills.Values())
	require.Equal(t, []string{"English"}, got.Languages.Values())
	require.Zero(t, got.PreferredLocations.Len())

	saved, ok, err := drafts.Load(ctx, "asha@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, saved.TechSkills.Contains("C, C++"))
}
