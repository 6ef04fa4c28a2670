// Package restore replays a bundle back into the stack: stop, unpack,
// replace files or data, restart. The sequence is a linear state machine with
// one branch point (raw volume restore vs database import).
package restore

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/relayx/relayops/internal/bundle"
	"github.com/relayx/relayops/internal/config"
)

// ErrMissingBundle indicates the requested archive does not exist. Checked
// before any destructive action.
var ErrMissingBundle = errors.New("backup archive not found")

// State is a position in the restore sequence.
type State int

const (
	StateIdle State = iota
	StateConfirm
	StateStopped
	StateUnpacked
	StateFilesRestored
	StateDatabaseStarting
	StateDatabaseReady
	StateDatabaseImported
	StateRestarted
	StateDone
	StateAborted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateConfirm:          "confirm",
	StateStopped:          "stopped",
	StateUnpacked:         "unpacked",
	StateFilesRestored:    "files_restored",
	StateDatabaseStarting: "database_starting",
	StateDatabaseReady:    "database_ready",
	StateDatabaseImported: "database_imported",
	StateRestarted:        "restarted",
	StateDone:             "done",
	StateAborted:          "aborted",
	StateFailed:           "failed",
}

func (s State) String() string { return stateNames[s] }

// Runtime is the container-runtime surface the executor needs.
type Runtime interface {
	ContainerRunning(ctx context.Context, name string) (bool, error)
	Exec(ctx context.Context, name string, cmd []string, stdin io.Reader, stdout io.Writer) error
	RestoreVolume(ctx context.Context, volumeName, hostDir, fileName string) error
	EnsureVolume(ctx context.Context, name string) error
}

// Orchestrator drives the compose stack.
type Orchestrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	UpService(ctx context.Context, service string) error
	PS(ctx context.Context) (string, error)
}

// Confirmer asks the operator for the exact affirmative token. Anything else
// aborts the restore without side effects.
type Confirmer func(prompt string) bool

// Executor runs the restore sequence for one bundle kind.
type Executor struct {
	cfg     *config.Config
	store   *bundle.Store
	runtime Runtime
	orch    Orchestrator
	confirm Confirmer
	workdir string

	state State
}

// NewExecutor creates a restore executor for the given working directory.
func NewExecutor(cfg *config.Config, store *bundle.Store, runtime Runtime, orch Orchestrator, confirm Confirmer, workdir string) *Executor {
	return &Executor{
		cfg:     cfg,
		store:   store,
		runtime: runtime,
		orch:    orch,
		confirm: confirm,
		workdir: workdir,
		state:   StateIdle,
	}
}

// State returns the executor's current position in the sequence.
func (e *Executor) State() State { return e.state }

// Run restores the latest bundle of the given kind. An operator abort returns
// (StateAborted, nil); any unrecoverable collaborator error returns
// (StateFailed, err) with the remaining sequence skipped.
func (e *Executor) Run(ctx context.Context, kind bundle.Kind) (State, error) {
	archivePath := e.store.ArchivePath(kind)
	if !e.store.ArchiveExists(kind) {
		return e.fail(fmt.Errorf("%w: %s", ErrMissingBundle, archivePath))
	}

	e.state = StateConfirm
	prompt := fmt.Sprintf("Restore will overwrite current %s state from %s.", kind, archivePath)
	if !e.confirm(prompt) {
		e.state = StateAborted
		log.Printf("restore aborted by operator, nothing was changed")
		return StateAborted, nil
	}

	// The service may already be down; a failed stop never blocks a restore.
	if err := e.orch.Down(ctx); err != nil {
		log.Printf("warning: failed to stop stack: %v (continuing)", err)
	}
	e.state = StateStopped

	extracted, tmpRoot, err := bundle.Unpack(archivePath, e.store.Name(kind))
	if err != nil {
		// tmpRoot is deliberately left behind for operator inspection.
		if tmpRoot != "" {
			log.Printf("extraction directory kept for inspection: %s", tmpRoot)
		}
		return e.fail(err)
	}
	e.state = StateUnpacked

	if kind == bundle.KindFull {
		restored, err := bundle.RestoreSiteFiles(extracted, e.workdir, e.cfg.Stack.SiteFiles())
		if err != nil {
			return e.failKeeping(tmpRoot, err)
		}
		log.Printf("restored site files: %v", restored)
		e.state = StateFilesRestored
	}

	if hasVolumeSnapshots(extracted) {
		if err := e.restoreVolumes(ctx, extracted); err != nil {
			return e.failKeeping(tmpRoot, err)
		}
	} else {
		if err := e.importDatabase(ctx, extracted); err != nil {
			return e.failKeeping(tmpRoot, err)
		}
	}

	if err := e.orch.Up(ctx); err != nil {
		return e.failKeeping(tmpRoot, err)
	}
	e.state = StateRestarted

	if listing, err := e.orch.PS(ctx); err == nil {
		log.Printf("stack status after restore:\n%s", listing)
	}

	_ = os.RemoveAll(tmpRoot)
	e.state = StateDone
	return StateDone, nil
}

// restoreVolumes replaces raw volume bytes from a cold bundle. The database
// import is skipped; the volume already carries the database files.
func (e *Executor) restoreVolumes(ctx context.Context, extracted string) error {
	volumesDir := filepath.Join(extracted, bundle.VolumesDir)
	for _, logical := range e.cfg.Stack.Volumes {
		fileName := logical + ".tar.gz"
		if _, err := os.Stat(filepath.Join(volumesDir, fileName)); err != nil {
			log.Printf("warning: no snapshot for volume %s in bundle, leaving it as is", logical)
			continue
		}
		name := e.cfg.Stack.VolumeName(logical)
		if err := e.runtime.EnsureVolume(ctx, name); err != nil {
			return err
		}
		if err := e.runtime.RestoreVolume(ctx, name, volumesDir, fileName); err != nil {
			return err
		}
		log.Printf("restored volume %s", name)
	}
	return nil
}

// importDatabase starts only the database service, waits for it within a
// bounded probe budget, and streams the decompressed dump into the native
// import tool. A failed import is fatal and surfaces the tool's own error.
func (e *Executor) importDatabase(ctx context.Context, extracted string) error {
	dumpPath := filepath.Join(extracted, bundle.DBDir, e.cfg.Stack.DBName+".sql.gz")
	f, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("bundle has no database dump: %w", err)
	}
	defer func() { _ = f.Close() }()

	e.state = StateDatabaseStarting
	if err := e.orch.UpService(ctx, e.cfg.Stack.DBService); err != nil {
		return err
	}

	e.waitDatabaseReady(ctx)

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read database dump: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	importCmd := []string{"sh", "-c", fmt.Sprintf(
		`exec mysql -uroot -p"$MYSQL_ROOT_PASSWORD" %s`, e.cfg.Stack.DBName)}
	if err := e.runtime.Exec(ctx, e.cfg.Stack.DBContainer, importCmd, gzr, nil); err != nil {
		return err
	}
	e.state = StateDatabaseImported
	return nil
}

// waitDatabaseReady polls with a fixed attempt budget. Exhaustion is a
// warning, not an abort: the probe may be imprecise and the import is
// attempted regardless.
func (e *Executor) waitDatabaseReady(ctx context.Context) {
	pingCmd := []string{"sh", "-c", `exec mysqladmin ping -uroot -p"$MYSQL_ROOT_PASSWORD" --silent`}
	for attempt := 1; attempt <= e.cfg.Restore.ReadyAttempts; attempt++ {
		if err := e.runtime.Exec(ctx, e.cfg.Stack.DBContainer, pingCmd, nil, nil); err == nil {
			e.state = StateDatabaseReady
			return
		}
		time.Sleep(e.cfg.Restore.ReadyDelay())
	}
	log.Printf("warning: database not confirmed ready after %d attempts, attempting import anyway", e.cfg.Restore.ReadyAttempts)
}

func (e *Executor) fail(err error) (State, error) {
	e.state = StateFailed
	return StateFailed, err
}

func (e *Executor) failKeeping(tmpRoot string, err error) (State, error) {
	log.Printf("extraction directory kept for inspection: %s", tmpRoot)
	return e.fail(err)
}

func hasVolumeSnapshots(extracted string) bool {
	info, err := os.Stat(filepath.Join(extracted, bundle.VolumesDir))
	return err == nil && info.IsDir()
}
