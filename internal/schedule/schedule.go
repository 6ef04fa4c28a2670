// Package schedule writes and removes the cron.d entry that runs the
// non-interactive backup modes unattended.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/relayx/relayops/internal/config"
)

var (
	// ErrRelativeProgramPath indicates the invoking binary path is not absolute.
	// cron runs with a different working directory, so a relative path would
	// silently break the scheduled jobs.
	ErrRelativeProgramPath = errors.New("program path must be absolute for scheduling")
	// ErrUnsupportedInterval indicates an interval a cron field cannot carry:
	// minute steps restart at the top of each hour, so intervals over 59
	// minutes must be a whole number of hours.
	ErrUnsupportedInterval = errors.New("interval has no cron equivalent")
)

// Writer manages the single declarative schedule file.
type Writer struct {
	cfg *config.Config
}

// NewWriter creates a schedule writer.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{cfg: cfg}
}

// Write overwrites the schedule file with two entries: a daily full backup at
// hour:minute and a data backup every intervalMinutes. Each entry carries the
// resolved working directory as an explicit environment override so the
// scheduled run does not re-resolve it ambiguously.
func (w *Writer) Write(hour, minute, intervalMinutes int, programPath, workdir string) error {
	if !filepath.IsAbs(programPath) {
		return fmt.Errorf("%w: %s", ErrRelativeProgramPath, programPath)
	}

	fullSpec := fmt.Sprintf("%d %d * * *", minute, hour)
	dataSpec, err := intervalSpec(intervalMinutes)
	if err != nil {
		return err
	}
	for _, spec := range []string{fullSpec, dataSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid schedule expression %q: %w", spec, err)
		}
	}

	var b strings.Builder
	b.WriteString("# relayx backup schedule, managed by relayops. Manual edits are overwritten.\n")
	fmt.Fprintf(&b, "%s root %s=%s %s full-backup >> %s 2>&1\n",
		fullSpec, config.EnvWorkdir, workdir, programPath, w.cfg.Schedule.FullLog)
	fmt.Fprintf(&b, "%s root %s=%s %s data-backup >> %s 2>&1\n",
		dataSpec, config.EnvWorkdir, workdir, programPath, w.cfg.Schedule.DataLog)

	// World-readable, owner-writable only; cron rejects anything looser.
	return os.WriteFile(w.cfg.Schedule.Path, []byte(b.String()), 0644)
}

// intervalSpec renders an every-N-minutes cadence as a cron expression. Under
// an hour it is a minute step; whole hours move to the hour field, since a
// minute step like */90 would fire hourly at :00 instead of every 90 minutes.
func intervalSpec(minutes int) (string, error) {
	if minutes < 60 {
		return fmt.Sprintf("*/%d * * * *", minutes), nil
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("0 */%d * * *", minutes/60), nil
	}
	return "", fmt.Errorf("%w: %d minutes; use a value under an hour or a whole number of hours",
		ErrUnsupportedInterval, minutes)
}

// Delete removes the schedule file. Removing an absent file is a no-op.
func (w *Writer) Delete() error {
	if err := os.Remove(w.cfg.Schedule.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Show returns the schedule file contents, or a placeholder when none exists.
func (w *Writer) Show() (string, error) {
	data, err := os.ReadFile(w.cfg.Schedule.Path)
	if os.IsNotExist(err) {
		return "no schedule configured\n", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
