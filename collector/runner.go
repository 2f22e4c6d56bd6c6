package collector

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/weiihann/perfexport/profile"
)

// RunConfig holds parameters for a single generator execution.
type RunConfig struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Runner launches a load generator and collects the snapshot it prints on
// stdout.
type Runner struct {
	Name       string
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the named generator.
// For generators that need an interpreter (e.g. python3 for a script),
// pass the interpreter as binaryPath and the script in extraArgs; see
// WrapCommand. Env is appended to the inherited environment.
func NewRunner(
	name, binaryPath string,
	extraArgs, env []string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Name:       name,
		BinaryPath: binaryPath,
		ExtraArgs:  extraArgs,
		Env:        env,
		Logger:     logger.With(slog.String("generator", name)),
	}
}

// Run executes the generator and returns the experiments it captured.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) ([]profile.Experiment, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(r.ExtraArgs)+len(cfg.Args))
	args = append(args, r.ExtraArgs...)
	args = append(args, cfg.Args...)

	cmd := exec.CommandContext(ctx, r.BinaryPath, args...)
	cmd.Dir = cfg.Dir

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.InfoContext(ctx, "starting generator",
		slog.String("binary", r.BinaryPath),
		slog.Any("args", args),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf(
			"generator %s failed: %w\nstderr: %s",
			r.Name, err, stderr.String(),
		)
	}

	wallElapsed := time.Since(wallStart)

	experiments, err := Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", r.Name, err)
	}

	requests := 0
	for _, e := range experiments {
		requests += len(e.Requests)
	}

	r.Logger.InfoContext(ctx, "generator finished",
		slog.Duration("wall_time", wallElapsed),
		slog.Int("experiments", len(experiments)),
		slog.Int("requests", requests),
	)

	return experiments, nil
}
