package cmake

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ctz/aws-lc-build/internal/msg"
)

// Runner drives a prepared configuration to completion. The build blocks
// the caller for as long as the native tool runs; a partial build must
// never be linked, so there is no timeout and no cancellation.
type Runner interface {
	Build(cfg *Config) error
}

// ExecRunner invokes the configured cmake executable.
type ExecRunner struct{}

func (ExecRunner) Build(cfg *Config) error {
	if err := os.MkdirAll(cfg.BuildDir, 0o755); err != nil {
		return fmt.Errorf("create build directory: %w", err)
	}

	msg.Info("configuring native build (%s, %s)", cfg.Tool.Name, fmtDefineCount(len(cfg.Defines)))
	if err := run(cfg, cfg.ConfigureArgs()); err != nil {
		return fmt.Errorf("native build configuration failed: %w", err)
	}

	msg.Info("compiling native library")
	if err := run(cfg, []string{"--build", cfg.BuildDir}); err != nil {
		return fmt.Errorf("native build failed: %w", err)
	}

	return nil
}

// run executes the tool with its output streamed through, indented. The
// external tool's diagnostics are the useful part of any failure; they must
// reach the user verbatim.
func run(cfg *Config, args []string) error {
	cmd := exec.Command(cfg.Tool.Name, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	out := &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
