package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/harun/pointlog/pkg/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long:  `Show whether a pointlog server is running and how many sessions are stored.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	pidFile := getPIDFilePath(cfg)

	if isRunning(pidFile) {
		pid, err := readPID(pidFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Status: running\n")
		fmt.Fprintf(out, "PID: %d\n", pid)
		if info, err := os.Stat(pidFile); err == nil {
			fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
		}
	} else {
		fmt.Fprintf(out, "Status: stopped\n")
	}

	ids, err := session.NewFiles(cfg.SessionsDir, zerolog.Nop()).List()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sessions dir: %s\n", cfg.SessionsDir)
	fmt.Fprintf(out, "Stored sessions: %d\n", len(ids))

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
