package snapshot

import (
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/relayx/relayops/internal/bundle"
	"github.com/relayx/relayops/internal/config"
	"github.com/relayx/relayops/internal/site"
	"github.com/relayx/relayops/internal/steps"
)

// Hot captures state while the stack keeps running. The database is exported
// with its native consistent-dump tool; the cache is asked to persist its own
// snapshot in the background and is never waited on.
type Hot struct {
	cfg     *config.Config
	store   *bundle.Store
	runtime Runtime
	workdir string
}

// NewHot creates a hot snapshot producer for the given working directory.
func NewHot(cfg *config.Config, store *bundle.Store, runtime Runtime, workdir string) *Hot {
	return &Hot{cfg: cfg, store: store, runtime: runtime, workdir: workdir}
}

// Capture produces the latest archive for the given kind.
func (h *Hot) Capture(ctx context.Context, kind bundle.Kind) (string, error) {
	if err := site.EnsureSiteFiles(h.workdir, h.cfg.Stack.SiteFiles()); err != nil {
		return "", err
	}

	stagingDir, err := h.store.Stage(kind)
	if err != nil {
		return "", err
	}

	bundleType := TypeDataOnline
	if kind == bundle.KindFull {
		bundleType = TypeFullOnline
	}

	sequence := []steps.Step{
		{Name: "dump database", Run: func(ctx context.Context) error {
			return h.dumpDatabase(ctx, stagingDir)
		}},
		{Name: "trigger cache snapshot", Policy: steps.BestEffort, Run: h.triggerCacheSave},
	}
	if kind == bundle.KindFull {
		sequence = append(sequence, steps.Step{Name: "copy site files", Run: func(context.Context) error {
			return bundle.CopySiteFiles(stagingDir, h.workdir, h.cfg.Stack.SiteFiles())
		}})
	}
	sequence = append(sequence, steps.Step{Name: "write manifest", Run: func(context.Context) error {
		return bundle.WriteManifest(stagingDir, bundle.NewManifest(bundleType, h.workdir))
	}})

	if err := steps.Run(ctx, sequence); err != nil {
		return "", err
	}
	return h.store.Pack(kind)
}

// dumpDatabase streams a consistent dump of the single configured database
// through gzip into the staging tree. --single-transaction keeps the dump
// transactionally consistent without locking; --set-gtid-purged=OFF keeps the
// dump importable on servers where GTID metadata would otherwise conflict.
func (h *Hot) dumpDatabase(ctx context.Context, stagingDir string) error {
	running, err := h.runtime.ContainerRunning(ctx, h.cfg.Stack.DBContainer)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("%w: %s", ErrDatabaseUnavailable, h.cfg.Stack.DBContainer)
	}

	dumpPath := filepath.Join(stagingDir, bundle.DBDir, h.cfg.Stack.DBName+".sql.gz")
	out, err := os.Create(dumpPath)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	defer func() { _ = out.Close() }()

	gzw := gzip.NewWriter(out)
	cmd := []string{"sh", "-c", fmt.Sprintf(
		`exec mysqldump --single-transaction --set-gtid-purged=OFF -uroot -p"$MYSQL_ROOT_PASSWORD" %s`,
		h.cfg.Stack.DBName)}
	if err := h.runtime.Exec(ctx, h.cfg.Stack.DBContainer, cmd, nil, gzw); err != nil {
		return err
	}

	if err := gzw.Close(); err != nil {
		return err
	}
	return out.Close()
}

// triggerCacheSave asks the cache to begin a background save. Completion is
// neither awaited nor verified; cache state is recoverable from the source of
// truth, so an absent cache container only warrants a warning.
func (h *Hot) triggerCacheSave(ctx context.Context) error {
	running, err := h.runtime.ContainerRunning(ctx, h.cfg.Stack.CacheContainer)
	if err != nil {
		return err
	}
	if !running {
		log.Printf("warning: cache container %s is not running, skipping snapshot trigger", h.cfg.Stack.CacheContainer)
		return nil
	}
	return h.runtime.Exec(ctx, h.cfg.Stack.CacheContainer, []string{"redis-cli", "BGSAVE"}, nil, nil)
}
