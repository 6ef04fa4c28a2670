// Package status assembles the operator-facing view of the stack: compose
// listing, container liveness, latest archives, host capacity, recent runs.
package status

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/relayx/relayops/internal/bundle"
	"github.com/relayx/relayops/internal/config"
	"github.com/relayx/relayops/internal/journal"
	"github.com/relayx/relayops/internal/stack"
)

// Runtime is the liveness surface status needs.
type Runtime interface {
	ContainerRunning(ctx context.Context, name string) (bool, error)
}

// Orchestrator provides the compose listing and the running service names.
type Orchestrator interface {
	PS(ctx context.Context) (string, error)
	RunningServices(ctx context.Context) ([]string, error)
}

// ArchiveInfo describes one latest archive on disk.
type ArchiveInfo struct {
	Kind    bundle.Kind
	Path    string
	Size    int64
	ModTime time.Time
}

// Report is a point-in-time view of the stack and its backups.
type Report struct {
	ComposePS       string
	DefinedServices []string
	DefinedVolumes  []string
	RunningServices []string
	DBRunning       bool
	CacheRunning    bool
	Archives        []ArchiveInfo
	DiskUsed        float64
	DiskFree        uint64
	MemoryUsed      float64
	Recent          []journal.Operation
}

// Collect gathers the report. Individual probes failing produce warnings and
// empty sections, never a failed status view.
func Collect(ctx context.Context, cfg *config.Config, store *bundle.Store, runtime Runtime, orch Orchestrator, jdb *journal.DB, workdir string) *Report {
	r := &Report{}

	if ps, err := orch.PS(ctx); err == nil {
		r.ComposePS = ps
	} else {
		log.Printf("warning: compose listing unavailable: %v", err)
	}

	composePath := filepath.Join(workdir, cfg.Stack.ComposeFile)
	if cf, err := stack.ParseComposeFile(composePath); err == nil {
		r.DefinedServices = cf.ServiceNames()
		r.DefinedVolumes = cf.VolumeNames()
	} else {
		log.Printf("warning: cannot inspect %s: %v", composePath, err)
	}
	if services, err := orch.RunningServices(ctx); err == nil {
		r.RunningServices = services
	} else {
		log.Printf("warning: running services unavailable: %v", err)
	}

	r.DBRunning, _ = runtime.ContainerRunning(ctx, cfg.Stack.DBContainer)
	r.CacheRunning, _ = runtime.ContainerRunning(ctx, cfg.Stack.CacheContainer)

	for _, kind := range []bundle.Kind{bundle.KindFull, bundle.KindData} {
		path := store.ArchivePath(kind)
		if info, err := os.Stat(path); err == nil {
			r.Archives = append(r.Archives, ArchiveInfo{Kind: kind, Path: path, Size: info.Size(), ModTime: info.ModTime()})
		}
	}

	if usage, err := disk.UsageWithContext(ctx, workdir); err == nil {
		r.DiskUsed = usage.UsedPercent
		r.DiskFree = usage.Free
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.MemoryUsed = vm.UsedPercent
	}

	if jdb != nil {
		if ops, err := jdb.Recent(5); err == nil {
			r.Recent = ops
		}
	}

	return r
}

// Render formats the report for the terminal.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString("== Stack ==\n")
	if r.ComposePS != "" {
		b.WriteString(r.ComposePS)
	}
	if len(r.DefinedServices) > 0 {
		running := make(map[string]bool, len(r.RunningServices))
		for _, s := range r.RunningServices {
			running[s] = true
		}
		states := make([]string, 0, len(r.DefinedServices))
		for _, s := range r.DefinedServices {
			state := "stopped"
			if running[s] {
				state = "running"
			}
			states = append(states, s+" ("+state+")")
		}
		fmt.Fprintf(&b, "services: %s\n", strings.Join(states, ", "))
	}
	if len(r.DefinedVolumes) > 0 {
		fmt.Fprintf(&b, "volumes: %s\n", strings.Join(r.DefinedVolumes, ", "))
	}
	fmt.Fprintf(&b, "database running: %v, cache running: %v\n", r.DBRunning, r.CacheRunning)

	b.WriteString("\n== Latest backups ==\n")
	if len(r.Archives) == 0 {
		b.WriteString("no backups yet\n")
	}
	for _, a := range r.Archives {
		fmt.Fprintf(&b, "%-5s %s (%d bytes, %s)\n", a.Kind, a.Path, a.Size, a.ModTime.Format("2006-01-02 15:04:05"))
	}

	b.WriteString("\n== Host ==\n")
	fmt.Fprintf(&b, "disk used: %.1f%% (%d bytes free), memory used: %.1f%%\n", r.DiskUsed, r.DiskFree, r.MemoryUsed)

	if len(r.Recent) > 0 {
		b.WriteString("\n== Recent operations ==\n")
		for _, op := range r.Recent {
			fmt.Fprintf(&b, "%s  %-14s %-8s %s\n", op.StartedAt.Format("2006-01-02 15:04:05"), op.Action, op.Status, op.Detail)
		}
	}

	return b.String()
}
