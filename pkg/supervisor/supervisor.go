//go:build linux

// Package supervisor keeps the agent running across crashes.
//
// A crashed run is not restarted in-process: the supervisor re-execs the
// binary over itself, so every attempt starts from a clean address space.
// Bookkeeping survives the exec through two environment variables: the
// attempt counter and the agent identity, so all attempts of one
// deployment report under the same ID.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// RestartEnvVar carries the attempt counter across the exec boundary.
	RestartEnvVar = "HOSTSTAT_RESTART"
	// IDEnvVar carries the agent identity across the exec boundary.
	IDEnvVar = "HOSTSTAT_ID"

	// MaxRunAttempts is the total number of runs before giving up, the
	// first launch included.
	MaxRunAttempts = 5

	// RestartDelay is how long a restarted attempt waits before running,
	// so a tight crash loop cannot spin the host.
	RestartDelay = 10 * time.Second
)

// Supervisor wraps one run of the agent body in a fault boundary and
// re-execs the process when the body crashes. The function fields default
// to the real OS primitives; tests substitute them.
type Supervisor struct {
	ID uuid.UUID

	// OnCrash is invoked with the recovered panic value or returned error
	// before the restart decision, typically to flush an error reporter.
	OnCrash func(v any)

	execFn  func(argv0 string, argv, envv []string) error
	exit    func(code int)
	sleep   func(d time.Duration)
	environ func() []string
	args    []string
	exePath string
}

// New returns a supervisor bound to the real process environment.
func New(id uuid.UUID) *Supervisor {
	return &Supervisor{
		ID:      id,
		execFn:  unix.Exec,
		exit:    os.Exit,
		sleep:   time.Sleep,
		environ: os.Environ,
		args:    os.Args,
		exePath: "/proc/self/exe",
	}
}

// Attempt returns the zero-based attempt counter from the environment.
// The first launch has no counter set and reads as attempt 0.
func Attempt() int {
	raw := os.Getenv(RestartEnvVar)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("invalid restart counter, treating as first attempt",
			"var", RestartEnvVar, "value", raw)
		return 0
	}
	return n
}

// Run executes body under the fault boundary and never returns.
//
// A clean return exits 0. A panic or returned error either re-execs the
// process with the counter advanced, or exits 1 when the attempt budget
// is spent. Restarted attempts pause for RestartDelay first.
func (s *Supervisor) Run(body func() error) {
	attempt := Attempt()
	if attempt > 0 {
		slog.Info("restarted after crash, waiting before run",
			"attempt", attempt, "delay", RestartDelay)
		s.sleep(RestartDelay)
	}

	crash, crashed := s.runGuarded(body)
	if !crashed {
		s.exit(0)
		return
	}

	if s.OnCrash != nil {
		s.OnCrash(crash)
	}

	next := attempt + 1
	if next >= MaxRunAttempts {
		slog.Error("giving up after repeated crashes",
			"attempts", next, "max", MaxRunAttempts, "err", crash)
		s.exit(1)
		return
	}

	slog.Error("run crashed, restarting", "attempt", attempt, "err", crash)
	if err := s.reexec(next); err != nil {
		slog.Error("re-exec failed", "err", err)
		s.exit(1)
	}
}

// runGuarded runs body behind a recover boundary. It reports the panic
// value or the returned error, and whether the run counts as a crash.
func (s *Supervisor) runGuarded(body func() error) (crash any, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crash, crashed = r, true
		}
	}()
	if err := body(); err != nil {
		return err, true
	}
	return nil, false
}

// reexec replaces this process image with a fresh run of the same binary,
// advancing the attempt counter and pinning the agent identity.
func (s *Supervisor) reexec(nextAttempt int) error {
	env := overrideEnv(s.environ(),
		fmt.Sprintf("%s=%d", RestartEnvVar, nextAttempt),
		fmt.Sprintf("%s=%s", IDEnvVar, s.ID.String()),
	)
	return s.execFn(s.exePath, s.args, env)
}

// overrideEnv returns environ with the given KEY=value pairs replacing
// any existing entries for the same keys.
func overrideEnv(environ []string, overrides ...string) []string {
	drop := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				drop[kv[:i]] = struct{}{}
				break
			}
		}
	}

	out := make([]string, 0, len(environ)+len(overrides))
	for _, kv := range environ {
		key := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key = kv[:i]
				break
			}
		}
		if _, ok := drop[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	return append(out, overrides...)
}
