package snapshot

import (
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

// Cold captures raw volume bytes with the whole stack stopped. Used when hard
// consistency of the underlying files is required. The stack restart at the
// end is attempted even after a failed step so a failed backup does not leave
// the site down.
type Cold struct {
	cfg     *config.Config
	store   *bundle.Store
	runtime Runtime
	orch    Orchestrator
	workdir string
}

// NewCold creates a cold snapshot producer for the given working directory.
func NewCold(cfg *config.Config, store *bundle.Store, runtime Runtime, orch Orchestrator, workdir string) *Cold {
	return &Cold{cfg: cfg, store: store, runtime: runtime, orch: orch, workdir: workdir}
}

// Capture produces a full_offline bundle. Cold captures are always full.
func (c *Cold) Capture(ctx context.Context, kind bundle.Kind) (string, error) {
	if kind != bundle.KindFull {
		return "", fmt.Errorf("cold snapshots only produce full bundles, got %q", kind)
	}
	if err := site.EnsureSiteFiles(c.workdir, c.cfg.Stack.SiteFiles()); err != nil {
		return "", err
	}

	stagingDir, err := c.store.Stage(bundle.KindFull)
	if err != nil {
		return "", err
	}
	volumesDir := filepath.Join(stagingDir, bundle.VolumesDir)
	if err := os.MkdirAll(volumesDir, 0755); err != nil {
		return "", err
	}

	// Best effort, not transactional: whatever happens below, bring the
	// stack back up before returning.
	defer func() {
		if err := c.orch.Up(ctx); err != nil {
			log.Printf("warning: failed to restart stack after cold snapshot: %v", err)
		}
	}()

	sequence := []steps.Step{
		{Name: "stop stack", Policy: steps.BestEffort, Run: c.orch.Down},
	}
	for _, logical := range c.cfg.Stack.Volumes {
		logical := logical
		sequence = append(sequence, steps.Step{
			Name: "archive volume " + logical,
			Run: func(ctx context.Context) error {
				return c.runtime.ArchiveVolume(ctx, c.cfg.Stack.VolumeName(logical), volumesDir, logical+".tar.gz")
			},
		})
	}
	sequence = append(sequence,
		steps.Step{Name: "copy site files", Run: func(context.Context) error {
			return bundle.CopySiteFiles(stagingDir, c.workdir, c.cfg.Stack.SiteFiles())
		}},
		steps.Step{Name: "write manifest", Run: func(context.Context) error {
			return bundle.WriteManifest(stagingDir, bundle.NewManifest(TypeFullOffline, c.workdir))
		}},
	)

	if err := steps.Run(ctx, sequence); err != nil {
		return "", err
	}
	return c.store.Pack(bundle.KindFull)
}
