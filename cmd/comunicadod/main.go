// Command comunicadod is the CLI harness driving the comunicado core: it
// boots the startup sequence, runs ad hoc searches, and performs
// retention cleanup against a database file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/olafkfreund/comunicado-sub000/internal/config"
	"github.com/olafkfreund/comunicado-sub000/internal/host"
	"github.com/olafkfreund/comunicado-sub000/internal/logging"
	"github.com/olafkfreund/comunicado-sub000/internal/search"
	"github.com/olafkfreund/comunicado-sub000/internal/startup"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Exit codes per the command/query surface contract.
const (
	exitOK                 = 0
	exitCriticalPhaseFail  = 1
	exitInvalidArgs        = 2
	exitDatabaseCorruption = 3
)

var (
	configPath string
	dbPath     string
	pretty     bool
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if code, ok := exitCodeFor(err); ok {
			return code
		}
		return exitInvalidArgs
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "comunicadod",
		Short:         "comunicado message store and search daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides config)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output instead of JSON")

	root.AddCommand(newRunCmd(), newSearchCmd(), newCleanupCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "boot the startup sequence and serve the core",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, pretty)
			slog.SetDefault(logger)

			s, err := store.Open(cfg.DBPath)
			if err != nil {
				if store.Is(err, store.KindEngine) {
					return exitError{code: exitDatabaseCorruption, cause: err}
				}
				return err
			}
			defer s.Close()

			descriptors := []startup.Descriptor{
				{Name: "database", Description: "open message store", Timeout: 10 * time.Second, Critical: true},
				{Name: "bindings", Description: "load key bindings", Timeout: 5 * time.Second, Critical: false},
			}
			reg, err := startup.NewRegistry(descriptors)
			if err != nil {
				return err
			}

			h := host.NewHost(s, reg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			runErr := startup.Run(ctx, reg, descriptors, func(name string, phaseCtx context.Context) error {
				switch name {
				case "database":
					return nil
				case "bindings":
					return loadBindings(h, cfg.BindingsPath)
				default:
					return nil
				}
			})
			if runErr != nil {
				return runErr
			}

			logger.Info("startup complete", "overall_progress_percentage", h.Startup.OverallProgressPercentage())

			if h.Startup.IsFailed() {
				return exitError{code: exitCriticalPhaseFail, cause: fmt.Errorf("critical phase failed: %v", h.Startup.ErrorStates())}
			}
			return nil
		},
	}
}

func loadBindings(h *host.Host, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	format, err := keybindFormatFor(path)
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return store.NewError("loadBindings", store.KindIo, err)
	}
	return importBindings(h, data, format, true)
}

func newSearchCmd() *cobra.Command {
	var mode string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "run a ranked full-text search and print results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := parseMode(mode)
			if err != nil {
				return exitError{code: exitInvalidArgs, cause: err}
			}

			reg, err := startup.NewRegistry(nil)
			if err != nil {
				return err
			}
			h := host.NewHost(s, reg)

			page, err := h.RunSearch(cmd.Context(), m, args[0], limit)
			if err != nil {
				if store.Is(err, store.KindTooShort) {
					return exitError{code: exitInvalidArgs, cause: err}
				}
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "full_text", "query mode: full_text, subject, from, body, advanced")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 100)")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "delete messages older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			days := cfg.DefaultRetentionDays
			if retentionDays > 0 {
				days = retentionDays
			}

			s, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			deleted, err := s.CleanupOldMessages(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "deleted %d messages older than %d days\n", deleted, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override the configured retention window in days")
	return cmd
}

func parseMode(raw string) (search.Mode, error) {
	switch raw {
	case "full_text", "":
		return search.FullText, nil
	case "subject":
		return search.Subject, nil
	case "from":
		return search.From, nil
	case "body":
		return search.Body, nil
	case "advanced":
		return search.Advanced, nil
	default:
		return 0, fmt.Errorf("unrecognized search mode %q", raw)
	}
}

// exitError carries the process exit code a RunE error should map to.
type exitError struct {
	code  int
	cause error
}

func (e exitError) Error() string { return e.cause.Error() }
func (e exitError) Unwrap() error { return e.cause }

func exitCodeFor(err error) (int, bool) {
	if ee, ok := err.(exitError); ok {
		return ee.code, true
	}
	return 0, false
}
