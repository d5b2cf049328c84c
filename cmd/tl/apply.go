package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"talentline/internal/app"
	"talentline/internal/domain"
	"talentline/internal/portal"
	"talentline/internal/wizard"
)

type applyFlags struct {
	jobTitle   string
	jobType    string
	department string
	email      string
	resume     string
	academics  string
}

func (f *applyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.resume, "resume", "", "resume file (PDF or DOC)")
	cmd.Flags().StringVar(&f.academics, "academics", "", "academic records file")
}

func (f applyFlags) job() domain.JobRef {
	return domain.JobRef{Title: f.jobTitle, Type: f.jobType, Department: f.department}
}

// readRecord loads an application record from YAML and attaches the files
// named on the command line.
func readRecord(path string, f applyFlags) (domain.ApplicationRecord, error) {
	var rec domain.ApplicationRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.resume != "" {
		if rec.Resume, err = readAttachment(f.resume); err != nil {
			return rec, err
		}
	}
	if f.academics != "" {
		if rec.Academics, err = readAttachment(f.academics); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func readAttachment(path string) (*domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &domain.Attachment{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func validateCmd() *cobra.Command {
	var f applyFlags
	cmd := &cobra.Command{
		Use:   "validate <record.yaml>",
		Short: "Check an application record against every step's rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(args[0], f)
			if err != nil {
				return err
			}
			failed := map[string]wizard.Errors{}
			total := 0
			for _, step := range domain.Steps() {
				errs := wizard.ValidateStep(step, rec)
				if !errs.Empty() {
					failed[step.String()] = errs
					total += len(errs)
				}
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": total == 0, "errors": failed})
			}
			if total == 0 {
				fmt.Println("record OK")
				return nil
			}
			printStepErrors(domain.Steps(), failed)
			return fmt.Errorf("%d field(s) invalid", total)
		},
	}
	f.register(cmd)
	return cmd
}

func printStepErrors(steps []domain.Step, failed map[string]wizard.Errors) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Step", "Field", "Message"})
	for _, step := range steps {
		errs, ok := failed[step.String()]
		if !ok {
			continue
		}
		for _, field := range errs.Fields() {
			tw.AppendRow(table.Row{step.String(), field, errs[field]})
		}
	}
	tw.Render()
}

func applyCmd() *cobra.Command {
	var f applyFlags
	cmd := &cobra.Command{
		Use:   "apply <record.yaml>",
		Short: "Fill the application wizard from a record file and submit it",
		Long: `apply walks the wizard one step at a time. Every edit is autosaved as a draft keyed
by the applicant email, so a run that stops on a step with errors resumes from the
saved answers next time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(args[0], f)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if f.department == "" && len(a.Config.Pipeline.Departments) > 0 {
					f.department = a.Config.Pipeline.Departments[0]
				}
				if !a.Config.HasDepartment(f.department) {
					return fmt.Errorf("unknown department %q", f.department)
				}
				drafts, err := a.Drafts(ctx, secrets())
				if err != nil {
					return err
				}
				email := f.email
				if email == "" {
					email = rec.Email
				}
				client := portalClient(a.Config)
				w, err := wizard.New(ctx, f.job(), client,
					wizard.WithDrafts(drafts),
					wizard.WithIdentity(wizard.Identity{Name: rec.FullName, Email: email}),
					wizard.WithLogger(slog.Default()),
				)
				if err != nil {
					return err
				}
				if err := fillWizard(ctx, w, rec); err != nil {
					return err
				}
				for w.Step() != domain.LastStep {
					step := w.Step()
					if errs := w.Advance(); !errs.Empty() {
						printStepErrors([]domain.Step{step}, map[string]wizard.Errors{step.String(): errs})
						return fmt.Errorf("step %q has errors; fix the record and run apply again", step.String())
					}
				}
				conf, err := w.Submit(ctx)
				if errors.Is(err, wizard.ErrStepInvalid) {
					step := w.Step()
					printStepErrors([]domain.Step{step}, map[string]wizard.Errors{step.String(): w.Errors()})
					return err
				}
				if err != nil {
					var apiErr *portal.APIError
					if errors.As(err, &apiErr) && apiErr.Code == "validation_failed" {
						if fields, ok := apiErr.Details["fields"].(map[string]any); ok {
							for field, msg := range fields {
								fmt.Fprintf(os.Stderr, "  %s: %v\n", field, msg)
							}
						}
					}
					return fmt.Errorf("%s (%w)", portal.UserMessage(err), err)
				}
				if viper.GetBool("json") {
					return printJSON(conf)
				}
				fmt.Printf("Application submitted. Applicant %s is at %s.\n", conf.ApplicantID, conf.Stage)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.jobTitle, "job-title", "", "job title applied for")
	cmd.Flags().StringVar(&f.jobType, "job-type", "", "job type, e.g. Full-time")
	cmd.Flags().StringVar(&f.department, "department", "", "department (default: first configured)")
	cmd.Flags().StringVar(&f.email, "email", "", "identity for draft autosave (default: record email)")
	f.register(cmd)
	_ = cmd.MarkFlagRequired("job-title")
	return cmd
}

// fillWizard copies every non-empty answer of rec into w. Answers from the
// file win over a resumed draft.
func fillWizard(ctx context.Context, w *wizard.Wizard, rec domain.ApplicationRecord) error {
	for _, field := range domain.FieldNames() {
		if domain.IsSetField(field) {
			if err := fillSelection(ctx, w, rec, field); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			continue
		}
		v, err := rec.Value(field)
		if err != nil {
			return err
		}
		if v == "" || (field == domain.FieldAgree && !rec.Agree) {
			continue
		}
		if err := w.Edit(ctx, field, v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if rec.Resume.Present() {
		if err := w.Attach(ctx, domain.FieldResume, *rec.Resume); err != nil {
			return err
		}
	}
	if rec.Academics.Present() {
		if err := w.Attach(ctx, domain.FieldAcademics, *rec.Academics); err != nil {
			return err
		}
	}
	return nil
}

// fillSelection makes w's choices for a multi-select field equal to rec's,
// one toggle per value, so choices containing commas stay whole.
func fillSelection(ctx context.Context, w *wizard.Wizard, rec domain.ApplicationRecord, field string) error {
	want, err := rec.Selection(field)
	if err != nil {
		return err
	}
	if want.Len() == 0 {
		return nil
	}
	have, err := w.Record().Selection(field)
	if err != nil {
		return err
	}
	for _, v := range have.Values() {
		if !want.Contains(v) {
			if err := w.Toggle(ctx, field, v); err != nil {
				return err
			}
		}
	}
	for _, v := range want.Values() {
		if !have.Contains(v) {
			if err := w.Toggle(ctx, field, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func draftCmd() *cobra.Command {
	dr := &cobra.Command{Use: "draft", Short: "Inspect autosaved application drafts"}
	dr.AddCommand(draftShowCmd())
	dr.AddCommand(draftClearCmd())
	return dr
}

func draftShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <email>",
		Short: "Print the saved draft for an applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				drafts, err := a.Drafts(ctx, secrets())
				if err != nil {
					return err
				}
				rec, ok, err := drafts.Load(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no draft for %s", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				out, err := yaml.Marshal(rec)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
	return cmd
}

func draftClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <email>",
		Short: "Discard the saved draft for an applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				drafts, err := a.Drafts(ctx, secrets())
				if err != nil {
					return err
				}
				return drafts.Clear(ctx, args[0])
			})
		},
	}
	return cmd
}
