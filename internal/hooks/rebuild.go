// Package hooks runs the site rebuild command after the adapter applies a
// config change.
package hooks

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 5 * time.Minute

	// outputLimit caps how much command output is kept for logging.
	outputLimit = 4 << 10
)

// Env describes the applied config to the rebuild command.
type Env struct {
	ConfigPath string // SITE_CONFIG_PATH
	ThemePath  string // SITE_THEME_PATH
	Version    int64  // SITE_CONFIG_VERSION
}

func (e Env) environ() []string {
	vars := []string{"SITE_CONFIG_VERSION=" + strconv.FormatInt(e.Version, 10)}
	if e.ConfigPath != "" {
		vars = append(vars, "SITE_CONFIG_PATH="+e.ConfigPath)
	}
	if e.ThemePath != "" {
		vars = append(vars, "SITE_THEME_PATH="+e.ThemePath)
	}
	return append(os.Environ(), vars...)
}

// Result is the outcome of one command run.
type Result struct {
	Output   string // combined stdout and stderr, trimmed to the last 4KiB
	Err      error
	Duration time.Duration
}

// Exec runs command through "sh -c" in dir (when it is a directory) with the
// process environment plus env. timeout is clamped to (0, MaxTimeout].
func Exec(ctx context.Context, command string, timeout time.Duration, dir string, env Env) Result {
	switch {
	case timeout <= 0:
		timeout = DefaultTimeout
	case timeout > MaxTimeout:
		timeout = MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // operator-configured
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = env.environ()
	if fi, err := os.Stat(dir); dir != "" && err == nil && fi.IsDir() {
		cmd.Dir = dir
	}

	start := time.Now()
	err := cmd.Run()
	output := out.Bytes()
	if len(output) > outputLimit {
		output = output[len(output)-outputLimit:]
	}
	return Result{Output: strings.TrimSpace(string(output)), Err: err, Duration: time.Since(start)}
}

// Runner runs the configured rebuild command. Triggers that arrive while a
// rebuild is running collapse into one follow-up run with the newest Env, so
// a burst of config changes costs at most two builds. A nil Runner or one
// with a blank command does nothing.
type Runner struct {
	command string
	timeout time.Duration
	dir     string
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	pending *Env
	wg      sync.WaitGroup
}

func NewRunner(command string, timeout time.Duration, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{command: command, timeout: timeout, dir: dir, logger: logger}
}

// Enabled reports whether a command is configured.
func (r *Runner) Enabled() bool {
	return r != nil && strings.TrimSpace(r.command) != ""
}

// Run executes the command synchronously and logs the outcome.
func (r *Runner) Run(ctx context.Context, env Env) Result {
	if !r.Enabled() {
		return Result{}
	}
	res := Exec(ctx, r.command, r.timeout, r.dir, env)
	if res.Err != nil {
		r.logger.Warn("rebuild failed", "version", env.Version, "err", res.Err, "output", res.Output, "duration", res.Duration)
	} else {
		r.logger.Info("rebuild finished", "version", env.Version, "duration", res.Duration)
	}
	return res
}

// Trigger starts a rebuild in the background, or queues one if a rebuild is
// already running.
func (r *Runner) Trigger(env Env) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.pending = &env
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.loop(env)
}

func (r *Runner) loop(env Env) {
	defer r.wg.Done()
	for {
		r.Run(context.Background(), env)

		r.mu.Lock()
		if r.pending == nil {
			r.running = false
			r.mu.Unlock()
			return
		}
		env = *r.pending
		r.pending = nil
		r.mu.Unlock()
	}
}

// Wait blocks until no rebuild is running or queued.
func (r *Runner) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}
