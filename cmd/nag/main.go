package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nag/internal/app"
	"nag/internal/db"
	"nag/internal/domain"
	"nag/internal/engine"
	"nag/internal/migrate"
	"nag/internal/repo"
	"nag/internal/scheduler"
	"nag/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "nag",
	Short: "Nag CLI",
	Long: `Nag is a personal task tracker that refuses to let things slide.
- Workspace: your .nag directory holding the database; settings live in the DB and can be imported from nag.yml.
- Tasks: short work items with a category and a time budget. An undated task expires after the configured timebox.
- Expiry: a background loop ('nag watch' or 'nag serve') flips overdue tasks to expired, exactly once each.
- Reminders: when a task expires, an accountability message is generated (AI-assisted when enabled, deterministic otherwise) and queued.
- Notifications: the pending queue and attention badge, viewed with 'nag notifications list' and cleared with 'nag notifications clear'.
- Detection: 'nag detect "<text>"' extracts tasks from free text; with AI disabled the text becomes one task as-is.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("NAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are short work items with a time budget. Open tasks count down; overdue ones expire and trigger a reminder.",
	}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskClearCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Text = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (defaults to general)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339, or free text kept as a note)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var category string
	var open, completed, expired bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := repo.TaskFilters{Category: category, OpenOnly: open}
			if cmd.Flags().Changed("completed") {
				filters.Completed = &completed
			}
			if cmd.Flags().Changed("expired") {
				filters.Expired = &expired
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, filters)
				if err != nil {
					return err
				}
				return printJSONOrTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().BoolVar(&open, "open", false, "only open tasks")
	cmd.Flags().BoolVar(&completed, "completed", false, "filter by completed flag")
	cmd.Flags().BoolVar(&expired, "expired", false, "filter by expired flag")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskDoneCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done (or reopen with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetCompleted(ctx, args[0], !undo)
				if err != nil {
					return err
				}
				return printJSONOrTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "reopen a completed task")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0])
			})
		},
	}
	return cmd
}

func taskClearCmd() *cobra.Command {
	var completedOnly bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Bulk delete tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.ClearTasks(ctx, completedOnly)
				if err != nil {
					return err
				}
				fmt.Printf("Cleared %d task(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completedOnly, "completed-only", false, "only remove completed tasks")
	return cmd
}

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <text>",
		Short: "Detect and create tasks from free text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, created, err := e.DetectTasks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"category": result.Category, "tasks": created})
				}
				fmt.Printf("Category: %s\n", result.Category)
				return printJSONOrTasks(created)
			})
		},
	}
	return cmd
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind <id>",
		Short: "Generate and queue a reminder for a task now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemindTask(ctx, args[0])
			})
		},
	}
	return cmd
}

func notificationsCmd() *cobra.Command {
	n := &cobra.Command{Use: "notifications", Short: "Manage the pending reminder queue"}
	n.AddCommand(notificationsListCmd())
	n.AddCommand(notificationsClearCmd())
	return n
}

func notificationsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending notifications (clears the attention badge)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Notifications(ctx)
				if err != nil {
					return err
				}
				// viewing the queue acknowledges the badge
				if err := e.Dispatcher.MarkViewed(ctx); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Message", "Task", "Created"})
				for _, it := range items {
					taskID := ""
					if it.TaskID != nil {
						taskID = *it.TaskID
					}
					tw.AppendRow(table.Row{it.ID, it.Message, taskID, it.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func notificationsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear pending notifications and the badge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.ClearNotifications(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Cleared %d notification(s)\n", n)
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage settings"}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configSetCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show settings stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configSetCmd() *cobra.Command {
	var provider, apiKey, model, endpoint string
	var enabled, disabled bool
	var timebox, tick, watch int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update individual settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg := *e.Config
				if cmd.Flags().Changed("provider") {
					cfg.AI.Provider = provider
				}
				if cmd.Flags().Changed("api-key") {
					cfg.AI.APIKey = apiKey
				}
				if cmd.Flags().Changed("model") {
					cfg.AI.Model = model
				}
				if cmd.Flags().Changed("endpoint") {
					cfg.AI.Endpoint = endpoint
				}
				if enabled {
					cfg.AI.Enabled = true
				}
				if disabled {
					cfg.AI.Enabled = false
				}
				if cmd.Flags().Changed("timebox") {
					cfg.Scheduler.TimeboxSeconds = timebox
				}
				if cmd.Flags().Changed("tick") {
					cfg.Scheduler.TickSeconds = tick
				}
				if cmd.Flags().Changed("watch") {
					cfg.Scheduler.WatchSeconds = watch
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := e.UpdateSettings(ctx, &cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "ai provider (openai, gemini, anthropic)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "ai api key")
	cmd.Flags().StringVar(&model, "model", "", "ai model")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "ai endpoint override")
	cmd.Flags().BoolVar(&enabled, "enable-ai", false, "enable ai features")
	cmd.Flags().BoolVar(&disabled, "disable-ai", false, "disable ai features")
	cmd.Flags().IntVar(&timebox, "timebox", 0, "task timebox in seconds")
	cmd.Flags().IntVar(&tick, "tick", 0, "scheduler tick in seconds")
	cmd.Flags().IntVar(&watch, "watch", 0, "watch interval in seconds")
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import settings from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ImportSettings(ctx, filePath, r)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.Repo.CountTasksByState(ctx)
				if err != nil {
					return err
				}
				pending, err := e.Repo.ListPendingNotifications(ctx)
				if err != nil {
					return err
				}
				badge, err := e.Repo.GetBadge(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"task_counts":           counts,
					"pending_notifications": len(pending),
					"badge":                 badge,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Println("Tasks:")
				for state, c := range counts {
					fmt.Printf("  %s: %d\n", state, c)
				}
				fmt.Printf("Pending notifications: %d\n", len(pending))
				fmt.Printf("Attention badge: %v\n", badge)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the expiry loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tick := e.Config.Scheduler.WatchTick()
				if cmd.Flags().Changed("interval") {
					tick = time.Duration(interval) * time.Second
				}
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				fmt.Printf("Watching tasks every %s (Ctrl-C to stop)\n", tick)
				scheduler.New(e).Run(ctx, tick)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 0, "tick interval in seconds (defaults to scheduler.watch_seconds)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the live expiry loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("NAG_JWT_SECRET")}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				sched := scheduler.New(e)
				go sched.Run(ctx, e.Config.Scheduler.Tick())

				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Nag API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				sched.Wait()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		cfg, err := app.ResolveSettings(ctx, viper.GetString("workspace"), r)
		if err != nil {
			return err
		}
		e := engine.New(r.DB, cfg)
		return fn(ctx, e)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Text", "Category", "State", "Remaining", "Due"})
	for _, t := range tasks {
		state := "open"
		switch {
		case t.Completed:
			state = "completed"
		case t.Expired:
			state = "expired"
		}
		remaining := ""
		if t.Open() {
			remaining = (time.Duration(t.RemainingSeconds) * time.Second).String()
		}
		due := ""
		if t.DueDate != nil {
			due = *t.DueDate
		}
		tw.AppendRow(table.Row{t.ID, t.Text, t.Category, state, remaining, due})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
