package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"talentline/internal/app"
	"talentline/internal/domain"
	"talentline/internal/pipeline"
	"talentline/internal/portal"
)

func pipelineCmd() *cobra.Command {
	pl := &cobra.Command{
		Use:   "pipeline",
		Short: "Review candidates through the hiring stages",
		Long:  "Reviewer commands talk to the portal with the bearer token from --token or TALENTLINE_TOKEN.",
	}
	pl.AddCommand(pipelineListCmd())
	pl.AddCommand(pipelineCountsCmd())
	pl.AddCommand(pipelineDecideCmd())
	pl.AddCommand(pipelineLedgerCmd())
	return pl
}

type boardFlags struct {
	department string
	stage      string
	page       int
}

func (f *boardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.department, "department", "", "department")
	cmd.Flags().StringVar(&f.stage, "stage", domain.StageApplied.Slug(), "stage name or slug")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	_ = cmd.MarkFlagRequired("department")
}

// loadBoard fetches the requested page of one department and stage.
func loadBoard(ctx context.Context, a *app.App, f boardFlags) (*pipeline.Board, *portal.Client, error) {
	stage, err := domain.ParseStage(f.stage)
	if err != nil {
		return nil, nil, err
	}
	client := portalClient(a.Config)
	b := pipeline.NewBoard(client, f.department, stage, a.Config.Pipeline.PageSize)
	if err := b.Load(ctx, f.page); err != nil {
		return nil, nil, fmt.Errorf("%s (%w)", portal.UserMessage(err), err)
	}
	return b, client, nil
}

func pipelineListCmd() *cobra.Command {
	var bf boardFlags
	var filter pipeline.Filter
	var from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates at a stage, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.AppliedFrom, err = parseDay(from); err != nil {
				return err
			}
			if filter.AppliedTo, err = parseDay(to); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				b, _, err := loadBoard(ctx, a, bf)
				if err != nil {
					return err
				}
				b.SetFilter(filter)
				visible := b.Visible()
				if viper.GetBool("json") {
					return printJSON(map[string]any{"items": visible, "pagination": b.Pagination()})
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Applicant", "Name", "Email", "Job", "Gender", "Applied", "Round"})
				for _, c := range visible {
					tw.AppendRow(table.Row{c.ApplicantID, c.Name, c.Email, c.JobTitle, c.Gender, c.AppliedAt.Format("2006-01-02"), c.RoundStatus})
				}
				p := b.Pagination()
				tw.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("page %d/%d", p.Page, p.TotalPages), fmt.Sprintf("%d total", p.Total)})
				tw.Render()
				return nil
			})
		},
	}
	bf.register(cmd)
	cmd.Flags().StringVar(&filter.Name, "name", "", "name contains")
	cmd.Flags().StringVar(&filter.Email, "email", "", "email contains")
	cmd.Flags().StringVar(&filter.JobTitle, "job-title", "", "exact job title")
	cmd.Flags().StringVar(&filter.JobType, "job-type", "", "exact job type")
	cmd.Flags().StringVar(&filter.Gender, "gender", "", "exact gender")
	cmd.Flags().StringVar(&from, "from", "", "applied on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "applied on or before (YYYY-MM-DD)")
	return cmd
}

func parseDay(in string) (time.Time, error) {
	if strings.TrimSpace(in) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", in)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", in)
	}
	return t, nil
}

func pipelineCountsCmd() *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Active, rejected and accepted candidates per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				counts, err := portalClient(a.Config).StageCounts(ctx, department)
				if err != nil {
					return fmt.Errorf("%s (%w)", portal.UserMessage(err), err)
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Stage", "Active", "Rejected", "Accepted"})
				for _, c := range counts {
					tw.AppendRow(table.Row{c.Stage, c.Active, c.Rejected, c.Accepted})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func pipelineDecideCmd() *cobra.Command {
	var bf boardFlags
	var outcome, target, message, link string
	cmd := &cobra.Command{
		Use:   "decide <applicant-id>",
		Short: "Clear or reject a candidate and notify them",
		Long: `decide moves the candidate and sends the notification together. When either call
fails nothing is reported as sent and the attempt is written to the decision ledger.
Without --message the configured template for the outcome is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := domain.ParseOutcome(outcome)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				b, client, err := loadBoard(ctx, a, bf)
				if err != nil {
					return err
				}
				r, err := b.Review(args[0],
					pipeline.WithLedger(a.Ledger),
					pipeline.WithTemplates(pipeline.Templates(a.Config.NotificationTemplates())),
					pipeline.WithActor(viper.GetString("actor-id")),
				)
				if err != nil {
					return err
				}
				var tp *domain.Stage
				if out == domain.OutcomeCleared {
					if target == "" {
						return fmt.Errorf("--target is required to clear; next stages: %s", stageList(pipeline.NextStages(b.Stage())))
					}
					s, err := domain.ParseStage(target)
					if err != nil {
						return err
					}
					tp = &s
				}
				if err := r.Decide(out, tp); err != nil {
					return err
				}
				if err := r.Compose(message, link); err != nil {
					return err
				}
				updated, err := r.Send(ctx, client)
				var sendErr *pipeline.SendError
				if errors.As(err, &sendErr) && sendErr.Partial() {
					half := "the notification went out but the stage change"
					if sendErr.Moved() {
						half = "the stage change went through but the notification"
					}
					return fmt.Errorf("%s failed; follow up with `tl pipeline ledger --partial --applicant %s` (%w)", half, args[0], err)
				}
				if err != nil {
					return fmt.Errorf("%s (%w)", portal.UserMessage(err), err)
				}
				if viper.GetBool("json") {
					return printJSON(updated)
				}
				fmt.Printf("%s: %s at %s (%s); notification queued for %s\n",
					updated.ApplicantID, out, updated.Stage, updated.RoundStatus, updated.Email)
				return nil
			})
		},
	}
	bf.register(cmd)
	cmd.Flags().StringVar(&outcome, "outcome", "", "cleared or rejected")
	cmd.Flags().StringVar(&target, "target", "", "stage to clear the candidate into")
	cmd.Flags().StringVar(&message, "message", "", "notification text (default: template)")
	cmd.Flags().StringVar(&link, "link", "", "optional link for the candidate, e.g. a meeting URL")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func stageList(stages []domain.Stage) string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Slug())
	}
	return strings.Join(names, ", ")
}

func pipelineLedgerCmd() *cobra.Command {
	var applicantID string
	var partial bool
	var n int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show decide-and-send attempts recorded in this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Ledger.List(ctx, applicantID, partial, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"At", "Applicant", "Outcome", "From", "Target", "Moved", "Notified", "Error"})
				for _, r := range recs {
					tgt := ""
					if r.TargetStage != nil {
						tgt = r.TargetStage.String()
					}
					tw.AppendRow(table.Row{
						r.At.Format(time.RFC3339), r.ApplicantID, r.Outcome, r.FromStage, tgt,
						r.Moved, r.Notified, strings.TrimSpace(r.MoveError + " " + r.NotifyError),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&applicantID, "applicant", "", "only this applicant")
	cmd.Flags().BoolVar(&partial, "partial", false, "only attempts where exactly one call went through")
	cmd.Flags().IntVar(&n, "n", 50, "number of entries")
	return cmd
}
