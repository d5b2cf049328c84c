package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"talentline/internal/app"
	"talentline/internal/config"
	"talentline/internal/db"
	"talentline/internal/portal"
	"talentline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Talentline CLI",
	Long: `Talentline runs the candidate lifecycle: applicants fill a nine-step application,
reviewers move candidates through the hiring stages and notify them of each decision.
- Workspace: the .talentline directory holding the local database, drafts and attachments.
- Config: talentline.yml in the workspace (tl config init); secrets come from TALENTLINE_* env vars or .env.
- Stages: Applied -> Resume Screening -> Round 1 -> Round 2 -> Final Round -> HR Round -> Selected.
- Decisions: clear a candidate into any later stage, or reject them at the current one. Each stage gets one decision.
- Ledger: every decide-and-send attempt, partial ones included (tl pipeline ledger).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		envPath := filepath.Join(workspace, ".env")
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		setupLogger()
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TALENTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("portal-url", "", "portal base URL (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "bearer token for reviewer commands")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"workspace", "json", "actor-id", "portal-url", "token", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(pipelineCmd())
	rootCmd.AddCommand(logCmd())
}

func setupLogger() {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage talentline.yml",
		Long:  "Config holds the portal address, the departments, the notification templates and the storage backends. Secrets stay in the environment.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default talentline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate talentline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TALENTLINE_JWT_SECRET is required for bearer auth")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e, err := a.Engine(ctx, secrets())
				if err != nil {
					return err
				}
				log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
				e.Log = log
				sc := a.Config.Server
				if addr == "" {
					addr = sc.Addr
				}
				if basePath == "" {
					basePath = sc.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret: secret,
						DevLogin:  devLogin,
						TokenTTL:  sc.TokenTTL,
						Logger:    log,
					},
					Logger:         log,
					MaxUploadBytes: sc.MaxUploadMB << 20,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Talentline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var roles []string
	var ttl time.Duration
	var save bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a reviewer bearer token with the server secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TALENTLINE_JWT_SECRET is required to sign tokens")
			}
			tok, err := server.IssueToken(secret, subject, roles, ttl)
			if err != nil {
				return err
			}
			if save {
				workspace := viper.GetString("workspace")
				if err := setEnvValue(filepath.Join(workspace, ".env"), "TALENTLINE_TOKEN", tok); err != nil {
					return err
				}
				fmt.Printf("Set TALENTLINE_TOKEN in %s/.env\n", workspace)
				return nil
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (reviewer id)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{server.RoleHR}, "roles to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime; 0 never expires")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the workspace .env")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var department, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events recorded in the local workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.LatestEvents(ctx, n, department, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Department", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.Department, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func secrets() app.Secrets {
	return app.Secrets{
		MinIOAccessKey: viper.GetString("minio-access-key"),
		MinIOSecretKey: viper.GetString("minio-secret-key"),
		RedisPassword:  viper.GetString("redis-password"),
	}
}

// portalClient builds the reviewer/applicant client. A 401 clears the token
// and tells the user to sign in again.
func portalClient(cfg *config.Config) *portal.Client {
	baseURL := viper.GetString("portal-url")
	if baseURL == "" {
		baseURL = cfg.Portal.BaseURL
	}
	opts := []portal.Option{
		portal.WithToken(viper.GetString("token")),
		portal.WithLogger(slog.Default()),
		portal.WithUnauthorizedHook(func(err error) {
			fmt.Fprintln(os.Stderr, "Your session has expired or is missing. Mint a new one with: tl token --subject <you> --save")
		}),
	}
	if cfg.Portal.BasePath != "" {
		opts = append(opts, portal.WithBasePath(cfg.Portal.BasePath))
	}
	if cfg.Portal.Timeout > 0 {
		opts = append(opts, portal.WithTimeout(cfg.Portal.Timeout))
	}
	return portal.New(baseURL, opts...)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
