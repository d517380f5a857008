package bindings

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ctz/aws-lc-build/internal/buildenv"
	"github.com/ctz/aws-lc-build/internal/msg"
)

// ErrNoGenerator reports that binding generation is required but no
// generator tool is configured for this build.
var ErrNoGenerator = errors.New("bindings build failed: no binding generator is configured; enable the 'bindgen' feature and set [bindgen] tool in Crate.toml")

// Options is the record handed to the external binding generator.
type Options struct {
	BuildPrefix    string // symbol prefix baked into the generated bindings
	IncludeSSL     bool   // include the TLS layer's symbols
	DisablePrelude bool   // suppress prelude boilerplate
	Output         string // file the generator writes
}

// Generator is the external collaborator contract: a source directory plus
// an options record yields a written bindings artifact.
type Generator interface {
	Generate(sourceDir string, opts Options) error
}

// ToolGenerator shells out to a binding-generator executable.
type ToolGenerator struct {
	Tool string
}

func (g ToolGenerator) Generate(sourceDir string, opts Options) error {
	args := []string{"--build-prefix", opts.BuildPrefix, "--output", opts.Output}
	if opts.IncludeSSL {
		args = append(args, "--include-ssl")
	}
	if opts.DisablePrelude {
		args = append(args, "--disable-prelude")
	}
	args = append(args, sourceDir)

	cmd := exec.Command(g.Tool, args...)
	out := &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("binding generator %s failed: %w", g.Tool, err)
	}
	return nil
}

// Materialize makes bindings available through exactly one mechanism,
// selected by the resolved strategy. The Pregenerated path performs no
// filesystem writes.
func Materialize(res Resolution, gen Generator, target *buildenv.Target, crateDir, prefix string, ssl bool) error {
	switch res.Strategy {
	case Pregenerated:
		return nil

	case GenerateAtBuildTime:
		if gen == nil {
			return ErrNoGenerator
		}
		msg.Info("generating bindings")
		return gen.Generate(crateDir, Options{
			BuildPrefix:    prefix,
			IncludeSSL:     ssl,
			DisablePrelude: true,
			Output:         filepath.Join(target.OutDir, "bindings.rs"),
		})

	case GenerateIntoSourceTree:
		if gen == nil {
			return ErrNoGenerator
		}
		srcDir := filepath.Join(crateDir, "src")
		msg.Info("generating source-tree bindings into %s", srcDir)
		if err := gen.Generate(crateDir, Options{
			BuildPrefix: prefix,
			IncludeSSL:  false,
			Output:      filepath.Join(srcDir, PlatformFilePrefix(target, "crypto")+".rs"),
		}); err != nil {
			return err
		}
		return gen.Generate(crateDir, Options{
			BuildPrefix: prefix,
			IncludeSSL:  true,
			Output:      filepath.Join(srcDir, PlatformFilePrefix(target, "crypto_ssl")+".rs"),
		})
	}
	panic("bindings: unknown Strategy")
}
