package sideeffect

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Deployment scales a named Kubernetes deployment between an "active"
// and an "idle" replica count via kubectl. This module deliberately
// shells out to kubectl rather than linking client-go: the typed
// in-cluster client path is already exercised by the cloud DNS provider
// variants, and the upstream scaling script this is based on defaults
// to the kubectl method over its own client-library alternative.
type Deployment struct {
	Name           string
	Namespace      string
	ActiveReplicas int
	IdleReplicas   int
	Log            *zap.SugaredLogger
}

var _ Effect = (*Deployment)(nil)

func NewDeployment(name, namespace string, activeReplicas, idleReplicas int, log *zap.SugaredLogger) *Deployment {
	return &Deployment{Name: name, Namespace: namespace, ActiveReplicas: activeReplicas, IdleReplicas: idleReplicas, Log: log}
}

func (d *Deployment) Activate(ctx context.Context) error {
	return d.scale(ctx, d.ActiveReplicas)
}

func (d *Deployment) Deactivate(ctx context.Context) error {
	return d.scale(ctx, d.IdleReplicas)
}

func (d *Deployment) Running(ctx context.Context) bool {
	replicas, err := d.currentReplicas(ctx)
	if err != nil {
		return false
	}
	return replicas >= d.ActiveReplicas && d.ActiveReplicas > 0
}

func (d *Deployment) scale(ctx context.Context, replicas int) error {
	d.Log.Infow("scaling deployment", "deployment", d.Name, "namespace", d.Namespace, "replicas", replicas)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "kubectl", "scale", "deployment", d.Name,
		"--replicas="+strconv.Itoa(replicas), "-n", d.Namespace).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "kubectl scale %s: %s", d.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *Deployment) currentReplicas(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "kubectl", "get", "deployment", d.Name,
		"-n", d.Namespace, "-o", "jsonpath={.spec.replicas}").CombinedOutput()
	if err != nil {
		return -1, errors.Wrap(err, "kubectl get deployment")
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}
