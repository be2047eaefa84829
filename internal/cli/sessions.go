package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/harun/pointlog/internal/config"
	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/pkg/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	showJSON   bool
	forceClear bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
	Long: `Inspect and manage the session files in the sessions directory.
These commands work on the files directly and do not need a running server.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the history of a session, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete a stored session",
	Long: `Delete a stored session file.
A running server may still hold the session in memory; use --force to clear
the file anyway, or clear it through the HTTP endpoint instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsClear,
}

func init() {
	sessionsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the history as JSON")
	sessionsClearCmd.Flags().BoolVar(&forceClear, "force", false, "clear even if a server is running")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// commandLogger logs to stderr so command output stays machine readable.
func commandLogger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.WarnLevel
	if logLevel != "" {
		if parsed, err := zerolog.ParseLevel(logLevel); err == nil {
			level = parsed
		}
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openStore(cmd *cobra.Command) (*session.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := commandLogger(cmd)
	return session.NewStore(session.NewFiles(cfg.SessionsDir, logger), logger), cfg, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	files := store.Files()

	ids, err := files.List()
	if err != nil {
		return err
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions stored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tRECORDS\tUPDATED")
	for _, id := range ids {
		records, _, err := files.Load(commandContext(cmd), id)
		count := strconv.Itoa(len(records))
		if err != nil {
			count = "?"
		}
		updated := "-"
		if modTime, err := files.ModTime(id); err == nil {
			updated = modTime.Format(session.TimeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, count, updated)
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	if err := session.ValidateID(id); err != nil {
		return err
	}

	history := store.History(commandContext(cmd), id)
	out := cmd.OutOrStdout()

	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]session.Record{"results": history})
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "Session %s has no records\n", id)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tX\tY\tR\tHIT\tMS")
	for _, rec := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%.3f\n",
			rec.ObservedAt,
			strconv.FormatFloat(rec.X, 'f', -1, 64),
			strconv.FormatFloat(rec.Y, 'f', -1, 64),
			strconv.FormatFloat(rec.R, 'f', -1, 64),
			rec.InRegion,
			rec.DurationMillis,
		)
	}
	return w.Flush()
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	if err := session.ValidateID(id); err != nil {
		return err
	}

	if !forceClear && isRunning(getPIDFilePath(cfg)) {
		return fmt.Errorf("server is running; use --force or clear the session through the HTTP endpoint")
	}

	ctx := commandContext(cmd)

	if !store.Clear(ctx, id) {
		observability.RecordSessionAudit(ctx, "session.clear", "cli", id, "not_found")
		return fmt.Errorf("session %s not found", id)
	}
	observability.RecordSessionAudit(ctx, "session.clear", "cli", id, "success")

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s cleared\n", id)
	return nil
}
