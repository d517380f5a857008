// Package builder runs the build orchestration end to end: probe the
// environment, check external dependencies, resolve the binding strategy,
// drive the native build, materialize bindings and publish the results.
// The stages are strictly sequential; each one's output is a plain value
// consumed by the next.
package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ctz/aws-lc-build/internal/bindings"
	"github.com/ctz/aws-lc-build/internal/buildenv"
	"github.com/ctz/aws-lc-build/internal/cmake"
	"github.com/ctz/aws-lc-build/internal/manifest"
	"github.com/ctz/aws-lc-build/internal/msg"
	"github.com/ctz/aws-lc-build/internal/publish"
	"github.com/ctz/aws-lc-build/internal/toolchain"
	"github.com/ctz/aws-lc-build/internal/upstream"
)

// Options adjust a build invocation. The zero value is the real thing:
// directives to stdout, cmake and the binding generator invoked as
// subprocesses.
type Options struct {
	Features          []string
	NoDefaultFeatures bool
	CMakeGenerator    string // optional -G value for cmake

	Emit     io.Writer                      // directive sink, default os.Stdout
	Runner   cmake.Runner                   // native build driver, default cmake.ExecRunner
	Bindgen  bindings.Generator             // overrides the manifest's [bindgen] tool
	FindTool func() (toolchain.Tool, error) // dependency probe, default toolchain.FindCMake

	Progress bool // render a staging progress bar on stderr
}

type Builder struct {
	crateDir string
	target   *buildenv.Target
	man      *manifest.Manifest
	features map[string]bool
	opts     Options
}

// New probes the environment and parses the crate manifest. Missing
// platform facts and unknown feature names fail here, before any work.
func New(crateDir string, opts Options) (*Builder, error) {
	crateDir, err := filepath.Abs(crateDir)
	if err != nil {
		return nil, err
	}

	target, err := buildenv.Probe()
	if err != nil {
		return nil, err
	}

	env := manifest.NewEnv(target.OS, target.Arch, target.Vendor)
	man, err := manifest.ParseFile(filepath.Join(crateDir, manifest.Filename), env)
	if err != nil {
		return nil, fmt.Errorf("failed to read crate manifest: %w", err)
	}

	features, err := man.ResolveFeatures(opts.Features, opts.NoDefaultFeatures)
	if err != nil {
		return nil, err
	}

	if opts.Emit == nil {
		opts.Emit = os.Stdout
	}
	if opts.Runner == nil {
		opts.Runner = cmake.ExecRunner{}
	}
	if opts.FindTool == nil {
		opts.FindTool = toolchain.FindCMake
	}

	return &Builder{
		crateDir: crateDir,
		target:   target,
		man:      man,
		features: features,
		opts:     opts,
	}, nil
}

// Vendor makes sure the vendored native sources are present, fetching the
// manifest's pinned upstream when they are not.
func (b *Builder) Vendor() error {
	return upstream.Ensure(b.vendorDir(), b.man.Upstream)
}

func (b *Builder) vendorDir() string {
	return filepath.Join(b.crateDir, upstream.VendorDir)
}

func (b *Builder) randExtraDir() string {
	return filepath.Join(b.vendorDir(), "crypto", "rand_extra")
}

// Build runs the whole orchestration. Every failure aborts: a partially
// configured native library must never be silently linked.
func (b *Builder) Build() error {
	ssl := b.features[manifest.FeatureSSL]

	// Strategy resolution is pure, so it runs first: the mutual-exclusion
	// violation must abort before any build work, external probes included.
	res, err := bindings.Resolve(b.target, b.features[manifest.FeatureBindgen])
	if err != nil {
		return err
	}
	msg.Info("binding strategy: %s", res.Strategy)

	tool, err := b.opts.FindTool()
	if err != nil {
		return err
	}

	if err := b.Vendor(); err != nil {
		return err
	}

	prefix := b.man.Package.PrefixString()
	cfg := cmake.Prepare(tool, b.target, b.crateDir, cmake.Options{
		Prefix:        prefix + "_",
		PrefixHeaders: filepath.Join(b.crateDir, "generated-include"),
		SSL:           ssl,
		Asan:          b.features[manifest.FeatureAsan],
		Generator:     b.opts.CMakeGenerator,
		ExtraDefines:  b.man.CMake.Defines,
	})

	if err := b.opts.Runner.Build(cfg); err != nil {
		return err
	}

	gen := b.opts.Bindgen
	if gen == nil && b.man.Bindgen.Tool != "" {
		gen = bindings.ToolGenerator{Tool: b.man.Bindgen.Tool}
	}
	if err := bindings.Materialize(res, gen, b.target, b.crateDir, prefix, ssl); err != nil {
		return err
	}

	return b.publish(res, prefix)
}

// publish stages the include tree and emits every directive the consuming
// build graph needs.
func (b *Builder) publish(res bindings.Resolution, prefix string) error {
	emit := publish.Emitter{W: b.opts.Emit}

	for _, cfg := range res.Cfgs {
		emit.Cfg(cfg)
	}

	artifactDir := cmake.ArtifactDir(b.target.OutDir)
	emit.LinkSearch(artifactDir)

	libs := []publish.Library{publish.Crypto}
	if b.features[manifest.FeatureSSL] {
		libs = append(libs, publish.SSL)
	}
	libs = append(libs, publish.RustWrapper)

	for _, lib := range libs {
		if _, ok := lib.Locate(artifactDir, prefix); !ok {
			// The linker is the authoritative failure point; just flag it.
			msg.Warn("expected library %s not found under %s", lib.Name(prefix), artifactDir)
		}
		emit.LinkLib(b.target.LibType, lib.Name(prefix))
	}

	staging := filepath.Join(b.target.OutDir, "include")
	sources := []string{
		filepath.Join(b.crateDir, "include"),
		filepath.Join(b.crateDir, "generated-include"),
		filepath.Join(b.vendorDir(), "include"),
	}
	sources = append(sources, b.target.ExtraIncludes...)

	var progress io.Writer
	if b.opts.Progress {
		progress = os.Stderr
	}
	if err := publish.StageIncludes(staging, sources, progress); err != nil {
		return err
	}

	emit.Include(staging)
	if b.target.PrivateInternals {
		// Callers of the non-public randomness surface need its headers.
		emit.Include(b.randExtraDir())
	}
	for _, extra := range b.target.ExtraIncludes {
		emit.Include(extra)
	}

	emit.RerunIfChanged(filepath.Join(b.crateDir, manifest.Filename))
	emit.RerunIfChanged(b.vendorDir())
	emit.RerunIfEnvChanged(buildenv.EnvStatic)

	return nil
}
