package stack

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compose invokes docker compose against the stack's working directory.
type Compose struct {
	Dir string
}

// NewCompose creates a Compose runner rooted at the working directory.
func NewCompose(dir string) *Compose {
	return &Compose{Dir: dir}
}

// Up brings the whole stack up in the background.
func (c *Compose) Up(ctx context.Context) error {
	return c.run(ctx, "up", "-d")
}

// Down stops and removes the stack's containers.
func (c *Compose) Down(ctx context.Context) error {
	return c.run(ctx, "down")
}

// UpService brings up a single service without its dependents, so imports
// can run against it with no load from the rest of the stack.
func (c *Compose) UpService(ctx context.Context, service string) error {
	return c.run(ctx, "up", "-d", "--no-deps", service)
}

// PS returns the compose status listing for display.
func (c *Compose) PS(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", "compose", "ps")
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker compose ps: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// RunningServices returns the names of currently running compose services.
func (c *Compose) RunningServices(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "docker", "compose", "ps", "--services", "--status", "running")
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker compose ps: %w: %s", err, strings.TrimSpace(string(out)))
	}

	var services []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			services = append(services, line)
		}
	}
	return services, nil
}

func (c *Compose) run(ctx context.Context, args ...string) error {
	full := append([]string{"compose"}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s: %w: %s", strings.Join(full, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
