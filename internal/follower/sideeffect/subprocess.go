package sideeffect

import (
	"context"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	osexec "os/exec"
)

// GracePeriod bounds how long Deactivate waits for SIGTERM to take
// effect before escalating to SIGKILL, matching the 10s grace period in
// original_source/otel_watcher.py's OTELCollector.stop.
const GracePeriod = 10 * time.Second

// Subprocess supervises a single long-running command, spawned in its
// own process group so Deactivate can signal the whole group rather than
// just the immediate child.
type Subprocess struct {
	Command string
	Log     *zap.SugaredLogger

	mu  sync.Mutex
	cmd *osexec.Cmd
}

var _ Effect = (*Subprocess)(nil)

func NewSubprocess(command string, log *zap.SugaredLogger) *Subprocess {
	return &Subprocess{Command: command, Log: log}
}

func (s *Subprocess) Activate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil && !s.exited() {
		return nil
	}

	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return errors.New("subprocess side-effect: empty command")
	}

	cmd := osexec.Command(fields[0], fields[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start subprocess")
	}
	s.cmd = cmd
	s.Log.Infow("started subprocess", "command", s.Command, "pid", cmd.Process.Pid)
	return nil
}

func (s *Subprocess) Deactivate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil || s.exited() {
		return nil
	}

	pgid := s.cmd.Process.Pid
	s.Log.Infow("stopping subprocess", "pid", pgid)
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return errors.Wrap(err, "signal process group")
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		s.Log.Infow("subprocess stopped gracefully")
	case <-time.After(GracePeriod):
		s.Log.Warnw("subprocess did not stop, sending SIGKILL")
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		<-done
	}

	s.cmd = nil
	return nil
}

func (s *Subprocess) Running(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && s.cmd.Process != nil && !s.exited()
}

// exited reports whether the supervised process has already exited,
// without blocking. Must be called with s.mu held.
func (s *Subprocess) exited() bool {
	if s.cmd.ProcessState != nil {
		return true
	}
	// A non-blocking liveness probe: signal 0 only checks existence.
	err := syscall.Kill(s.cmd.Process.Pid, 0)
	return err != nil
}
