// Package stack talks to the container runtime: engine API calls against
// named containers and volumes, and docker compose invocations against the
// stack's working directory.
package stack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

var (
	// ErrContainerNotRunning indicates the named container is absent or stopped.
	ErrContainerNotRunning = errors.New("container is not running")
	// ErrCommandFailed indicates a command inside a container exited non-zero.
	ErrCommandFailed = errors.New("command failed inside container")
)

// Docker wraps the engine API for the operations relayops needs.
type Docker struct {
	// HelperImage runs transient volume archive/restore jobs.
	HelperImage string
}

// NewDocker creates a Docker runtime handle using the helper image for
// transient volume jobs.
func NewDocker(helperImage string) *Docker {
	return &Docker{HelperImage: helperImage}
}

// getClient creates a new Docker client.
func (d *Docker) getClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// Available checks if the Docker daemon is reachable.
func (d *Docker) Available(ctx context.Context) bool {
	cli, err := d.getClient()
	if err != nil {
		return false
	}
	defer func() { _ = cli.Close() }()

	_, err = cli.Ping(ctx)
	return err == nil
}

// ContainerRunning reports whether a container with exactly the given name is
// currently running.
func (d *Docker) ContainerRunning(ctx context.Context, name string) (bool, error) {
	cli, err := d.getClient()
	if err != nil {
		return false, fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, c := range containers {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == name {
				return true, nil
			}
		}
	}
	return false, nil
}

// Exec runs a command inside a running container, streaming stdin into it and
// its stdout into the given writer. A non-zero exit surfaces the command's
// own stderr text. Targeting a stopped or absent container returns
// ErrContainerNotRunning.
func (d *Docker) Exec(ctx context.Context, name string, cmd []string, stdin io.Reader, stdout io.Writer) error {
	running, err := d.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("%w: %s", ErrContainerNotRunning, name)
	}

	cli, err := d.getClient()
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	execID, err := cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		AttachStdin:  stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create exec in %s: %w", name, err)
	}

	resp, err := cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach exec in %s: %w", name, err)
	}
	defer resp.Close()

	copyErr := make(chan error, 1)
	go func() {
		if stdin != nil {
			if _, err := io.Copy(resp.Conn, stdin); err != nil {
				copyErr <- err
				return
			}
			_ = resp.CloseWrite()
		}
		copyErr <- nil
	}()

	if stdout == nil {
		stdout = io.Discard
	}
	var stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(stdout, &stderr, resp.Reader); err != nil {
		return fmt.Errorf("failed to stream exec output from %s: %w", name, err)
	}
	if err := <-copyErr; err != nil {
		return fmt.Errorf("failed to stream stdin into %s: %w", name, err)
	}

	inspect, err := cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return fmt.Errorf("failed to inspect exec in %s: %w", name, err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("%w: %s exited %d: %s", ErrCommandFailed,
			strings.Join(cmd, " "), inspect.ExitCode, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ArchiveVolume archives a volume's contents into hostDir/fileName using a
// transient helper container with the volume mounted read-only.
func (d *Docker) ArchiveVolume(ctx context.Context, volumeName, hostDir, fileName string) error {
	shellCmd := fmt.Sprintf("tar czf /backup/%s -C /data .", fileName)
	binds := []string{
		volumeName + ":/data:ro",
		hostDir + ":/backup",
	}
	return d.runVolumeJob(ctx, binds, shellCmd)
}

// RestoreVolume replaces a volume's contents from hostDir/fileName. The
// volume is emptied first so files deleted since the snapshot do not linger.
func (d *Docker) RestoreVolume(ctx context.Context, volumeName, hostDir, fileName string) error {
	shellCmd := fmt.Sprintf("rm -rf /data/* /data/..?* /data/.[!.]* 2>/dev/null; tar xzf /backup/%s -C /data", fileName)
	binds := []string{
		volumeName + ":/data",
		hostDir + ":/backup:ro",
	}
	return d.runVolumeJob(ctx, binds, shellCmd)
}

// EnsureVolume creates a named volume if it does not already exist.
func (d *Docker) EnsureVolume(ctx context.Context, name string) error {
	cli, err := d.getClient()
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	if _, err := cli.VolumeCreate(ctx, volume.CreateOptions{Name: name}); err != nil {
		return fmt.Errorf("failed to create volume %s: %w", name, err)
	}
	return nil
}

func (d *Docker) runVolumeJob(ctx context.Context, binds []string, shellCmd string) error {
	cli, err := d.getClient()
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	if err := d.ensureImage(ctx, cli); err != nil {
		return err
	}

	created, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image: d.HelperImage,
			Cmd:   []string{"sh", "-c", shellCmd},
		},
		&container.HostConfig{
			Binds:      binds,
			AutoRemove: false,
		},
		nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create helper container: %w", err)
	}
	defer func() {
		_ = cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start helper container: %w", err)
	}

	statusCh, errCh := cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to wait for helper container: %w", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			logs := d.containerLogs(ctx, cli, created.ID)
			return fmt.Errorf("%w: helper exited %d: %s", ErrCommandFailed, status.StatusCode, logs)
		}
	}
	return nil
}

func (d *Docker) ensureImage(ctx context.Context, cli *client.Client) error {
	images, err := cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", d.HelperImage)),
	})
	if err == nil && len(images) > 0 {
		return nil
	}

	rc, err := cli.ImagePull(ctx, d.HelperImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull helper image %s: %w", d.HelperImage, err)
	}
	defer func() { _ = rc.Close() }()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

func (d *Docker) containerLogs(ctx context.Context, cli *client.Client, id string) string {
	rc, err := cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: "20"})
	if err != nil {
		return ""
	}
	defer func() { _ = rc.Close() }()

	var out bytes.Buffer
	_, _ = stdcopy.StdCopy(&out, &out, rc)
	return strings.TrimSpace(out.String())
}
