package sideeffect

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Container drives a single named Docker container through `docker
// start`/`docker stop`, grounded on
// original_source/otel_watcher_docker.py's container_is_running/
// start_container/stop_container.
type Container struct {
	Name string
	Log  *zap.SugaredLogger
}

var _ Effect = (*Container)(nil)

func NewContainer(name string, log *zap.SugaredLogger) *Container {
	return &Container{Name: name, Log: log}
}

func (c *Container) Activate(ctx context.Context) error {
	if c.Running(ctx) {
		return nil
	}
	c.Log.Infow("starting container", "container", c.Name)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "docker", "start", c.Name).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "docker start %s: %s", c.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Container) Deactivate(ctx context.Context) error {
	if !c.Running(ctx) {
		return nil
	}
	c.Log.Infow("stopping container", "container", c.Name)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "docker", "stop", "-t", "10", c.Name).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "docker stop %s: %s", c.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Container) Running(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", c.Name).CombinedOutput()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}
