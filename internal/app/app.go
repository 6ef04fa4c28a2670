// Package app wires the components together and drives them from the menu
// and the non-interactive modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/relayx/relayops/internal/bundle"
	"github.com/relayx/relayops/internal/config"
	"github.com/relayx/relayops/internal/journal"
	"github.com/relayx/relayops/internal/menu"
	"github.com/relayx/relayops/internal/restore"
	"github.com/relayx/relayops/internal/schedule"
	"github.com/relayx/relayops/internal/snapshot"
	"github.com/relayx/relayops/internal/stack"
	"github.com/relayx/relayops/internal/status"
	"github.com/relayx/relayops/internal/validation"
)

// ErrUnknownMode indicates an unrecognized non-interactive mode argument.
var ErrUnknownMode = errors.New("unknown mode")

// App holds the wired components for one resolved working directory.
type App struct {
	cfg      *config.Config
	workdir  string
	store    *bundle.Store
	docker   *stack.Docker
	compose  *stack.Compose
	journal  *journal.DB
	prompter *menu.Prompter
	out      io.Writer
}

// New wires an App for the given working directory. jdb may be nil when the
// journal is unavailable; operations then simply go unrecorded.
func New(cfg *config.Config, workdir string, jdb *journal.DB, in io.Reader, out io.Writer) (*App, error) {
	backupDir := filepath.Join(workdir, cfg.Backup.Dir)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	return &App{
		cfg:      cfg,
		workdir:  workdir,
		store:    bundle.NewStore(backupDir, cfg.Backup.FullName, cfg.Backup.DataName),
		docker:   stack.NewDocker(cfg.Stack.HelperImage),
		compose:  stack.NewCompose(workdir),
		journal:  jdb,
		prompter: menu.NewPrompter(in, out),
		out:      out,
	}, nil
}

// RunMode executes one non-interactive mode (for the scheduler).
func (a *App) RunMode(ctx context.Context, mode string) error {
	switch mode {
	case "full-backup":
		return a.backup(ctx, "full-backup", bundle.KindFull)
	case "data-backup":
		return a.backup(ctx, "data-backup", bundle.KindData)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// RunMenu runs the interactive loop until the operator exits.
func (a *App) RunMenu(ctx context.Context) error {
	for {
		fmt.Fprint(a.out, menu.Text)
		choice := a.prompter.Line("Choose an action: ")

		var err error
		switch menu.ParseAction(choice) {
		case menu.ActionFullBackup:
			err = a.backup(ctx, "full-backup", bundle.KindFull)
		case menu.ActionFullRestore:
			err = a.restoreKind(ctx, "full-restore", bundle.KindFull)
		case menu.ActionDataBackup:
			err = a.backup(ctx, "data-backup", bundle.KindData)
		case menu.ActionGuidedRestore:
			err = a.guidedRestore(ctx)
		case menu.ActionOfflineBackup:
			err = a.offlineBackup(ctx)
		case menu.ActionStatus:
			a.showStatus(ctx)
		case menu.ActionScheduleConfigure:
			err = a.configureSchedule()
		case menu.ActionScheduleShow:
			err = a.showSchedule()
		case menu.ActionScheduleDelete:
			err = schedule.NewWriter(a.cfg).Delete()
		case menu.ActionExit:
			return nil
		default:
			fmt.Fprintf(a.out, "unrecognized choice %q\n", choice)
			continue
		}

		if err != nil {
			// Menu mode keeps running; the operator sees the failure and
			// decides what to do next.
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
	}
}

func (a *App) backup(ctx context.Context, action string, kind bundle.Kind) error {
	producer := snapshot.NewHot(a.cfg, a.store, a.docker, a.workdir)
	return a.record(action, func() (string, error) {
		archive, err := producer.Capture(ctx, kind)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(a.out, "backup complete: %s\n", archive)
		return "archive: " + archive, nil
	})
}

func (a *App) offlineBackup(ctx context.Context) error {
	producer := snapshot.NewCold(a.cfg, a.store, a.docker, a.compose, a.workdir)
	return a.record("offline-backup", func() (string, error) {
		archive, err := producer.Capture(ctx, bundle.KindFull)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(a.out, "offline backup complete: %s\n", archive)
		return "archive: " + archive, nil
	})
}

func (a *App) restoreKind(ctx context.Context, action string, kind bundle.Kind) error {
	confirm := func(prompt string) bool {
		return a.prompter.ConfirmExact(prompt, menu.ConfirmToken)
	}
	exec := restore.NewExecutor(a.cfg, a.store, a.docker, a.compose, confirm, a.workdir)

	id := a.journalStart(action)
	state, err := exec.Run(ctx, kind)
	switch {
	case err != nil:
		a.journalFinish(id, journal.StatusFailed, err.Error())
		return err
	case state == restore.StateAborted:
		a.journalFinish(id, journal.StatusAborted, "")
		return nil
	default:
		a.journalFinish(id, journal.StatusOK, "restored from "+a.store.ArchivePath(kind))
		fmt.Fprintf(a.out, "restore complete\n")
		return nil
	}
}

// guidedRestore default-offers the less destructive data restore when a data
// bundle exists; the full restore (which also overwrites configuration) is
// only offered after that, and only proceeds on explicit assent.
func (a *App) guidedRestore(ctx context.Context) error {
	hasData := a.store.ArchiveExists(bundle.KindData)
	hasFull := a.store.ArchiveExists(bundle.KindFull)

	if !hasData && !hasFull {
		return fmt.Errorf("%w: neither %s nor %s exists", restore.ErrMissingBundle,
			a.store.ArchivePath(bundle.KindData), a.store.ArchivePath(bundle.KindFull))
	}

	if hasData && a.prompter.ConfirmDefaultYes("A data backup exists. Restore database state from it?") {
		return a.restoreKind(ctx, "guided-restore", bundle.KindData)
	}
	if hasFull && a.prompter.ConfirmDefaultNo("Restore the FULL bundle instead? This also overwrites configuration files") {
		return a.restoreKind(ctx, "guided-restore", bundle.KindFull)
	}

	fmt.Fprintln(a.out, "nothing restored")
	return nil
}

func (a *App) showStatus(ctx context.Context) {
	report := status.Collect(ctx, a.cfg, a.store, a.docker, a.compose, a.journal, a.workdir)
	fmt.Fprint(a.out, report.Render())
}

func (a *App) configureSchedule() error {
	hour, minute, err := validation.TimeOfDay(a.prompter.Line("Daily full backup time (HH:MM): "))
	if err != nil {
		return err
	}
	interval, err := validation.MinuteInterval(a.prompter.Line("Data backup interval in minutes (1-1440): "))
	if err != nil {
		return err
	}

	programPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own executable: %w", err)
	}

	if err := schedule.NewWriter(a.cfg).Write(hour, minute, interval, programPath, a.workdir); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "schedule written to %s\n", a.cfg.Schedule.Path)
	return nil
}

func (a *App) showSchedule() error {
	out, err := schedule.NewWriter(a.cfg).Show()
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, out)
	return nil
}

// record runs an operation and journals its outcome. Journal trouble is
// logged and never fails the operation itself.
func (a *App) record(action string, fn func() (string, error)) error {
	id := a.journalStart(action)
	detail, err := fn()
	if err != nil {
		a.journalFinish(id, journal.StatusFailed, err.Error())
		return err
	}
	a.journalFinish(id, journal.StatusOK, detail)
	return nil
}

func (a *App) journalStart(action string) string {
	if a.journal == nil {
		return ""
	}
	id, err := a.journal.Start(action)
	if err != nil {
		log.Printf("warning: journal unavailable: %v", err)
		return ""
	}
	return id
}

func (a *App) journalFinish(id, outcome, detail string) {
	if a.journal == nil || id == "" {
		return
	}
	if err := a.journal.Finish(id, outcome, detail); err != nil {
		log.Printf("warning: journal update failed: %v", err)
	}
}
