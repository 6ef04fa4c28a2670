// Package snapshot captures stack state into bundles. Two interchangeable
// strategies exist: hot (services stay up, native export tools) and cold
// (stack stopped, raw volume bytes).
package snapshot

import (
	"context"
	"errors"
	"io"

	"github.com/relayx/relayops/internal/bundle"
)

// Bundle type labels recorded in manifests.
const (
	TypeFullOnline  = "full_online"
	TypeDataOnline  = "data_online"
	TypeFullOffline = "full_offline"
)

// ErrDatabaseUnavailable indicates the database container is not running.
// There is no meaningful backup without it.
var ErrDatabaseUnavailable = errors.New("database container is not running")

// Producer captures stack state into the latest archive for a bundle kind.
type Producer interface {
	Capture(ctx context.Context, kind bundle.Kind) (archivePath string, err error)
}

// Runtime is the container-runtime surface the producers need.
type Runtime interface {
	ContainerRunning(ctx context.Context, name string) (bool, error)
	Exec(ctx context.Context, name string, cmd []string, stdin io.Reader, stdout io.Writer) error
	ArchiveVolume(ctx context.Context, volumeName, hostDir, fileName string) error
}

// Orchestrator brings the whole stack up or down.
type Orchestrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}
