package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
	"github.com/ariel-frischer/specrunner/internal/progress"
	"github.com/ariel-frischer/specrunner/internal/status"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream status-store state transitions as they happen",
	Long: `Watch follows the status file with fsnotify and prints a line every time
a test's state changes, until interrupted. Grounded on
internal/dag/tailer.go file-watch loop, adapted from line-streaming a log
file to diffing two successive status-store snapshots.`,
	RunE: runWatch,
}

func init() {
	watchCmd.GroupID = GroupLifecycle
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("creating file watcher: %v", err))
	}
	defer watcher.Close()

	dir := filepath.Dir(cfg.StatusPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("creating status directory: %v", err))
	}
	if err := watcher.Add(dir); err != nil {
		return clierrors.NewRuntimeError(fmt.Sprintf("watching %s: %v", dir, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	prev := status.Load(cfg.StatusPath)
	fmt.Fprintf(out, "watching %s (ctrl-c to stop)\n", cfg.StatusPath)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// A spinner only makes sense against an attached terminal; piped output
	// (tests, log capture) gets the plain diff lines with no animation.
	caps := progress.DetectTerminalCapabilities()
	var idle *spinner.Spinner
	if caps.IsTTY {
		idle = spinner.New(spinner.CharSets[progress.SelectSymbols(caps).SpinnerSet], 100*time.Millisecond)
		idle.Suffix = " waiting for state changes"
		idle.Start()
		defer idle.Stop()
	}

	report := func() {
		if idle != nil {
			idle.Stop()
		}
		prev = diffAndReport(out, cfg.StatusPath, prev)
		if idle != nil {
			idle.Start()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Events:
			report()
		case <-ticker.C:
			report()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		}
	}
}

func diffAndReport(out io.Writer, path string, prev status.Status) status.Status {
	next := status.Load(path)
	for label, entry := range next {
		if old, ok := prev[label]; !ok || old.State != entry.State {
			fmt.Fprintf(out, "%s  %-40s %s\n", time.Now().UTC().Format(timeFormat), label, entry.State)
		}
	}
	return next
}
