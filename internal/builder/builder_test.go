package builder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctz/aws-lc-build/internal/bindings"
	"github.com/ctz/aws-lc-build/internal/buildenv"
	"github.com/ctz/aws-lc-build/internal/cmake"
	"github.com/ctz/aws-lc-build/internal/publish"
	"github.com/ctz/aws-lc-build/internal/toolchain"
)

func fakeTool() (toolchain.Tool, error) {
	return toolchain.Tool{Name: "cmake"}, nil
}

// fakeRunner stands in for the native build: it records the invocation and
// drops plausible artifacts where the publisher will look for them.
type fakeRunner struct {
	calls int
	cfg   *cmake.Config
}

func (r *fakeRunner) Build(cfg *cmake.Config) error {
	r.calls++
	r.cfg = cfg

	prefix, _ := cfg.Lookup("BORINGSSL_PREFIX")
	prefix = strings.TrimSuffix(prefix, "_")
	artifacts := filepath.Join(cfg.BuildDir, "artifacts")

	for _, lib := range []publish.Library{publish.Crypto, publish.SSL, publish.RustWrapper} {
		path := filepath.Join(artifacts, "lib"+lib.Name(prefix)+".a")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeGenerator struct {
	calls []bindings.Options
}

func (g *fakeGenerator) Generate(sourceDir string, opts bindings.Options) error {
	g.calls = append(g.calls, opts)
	return nil
}

func setupCrate(t *testing.T) string {
	t.Helper()
	crateDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(crateDir, "Crate.toml"), []byte(`
[package]
name = "aws-lc-sys"
version = "0.1.0"
`), 0o644))

	for _, f := range []string{
		filepath.Join("include", "rust_wrapper.h"),
		filepath.Join("aws-lc", "include", "openssl", "base.h"),
		filepath.Join("aws-lc", "crypto", "rand_extra", "entropy.h"),
	} {
		path := filepath.Join(crateDir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("// "+f), 0o644))
	}

	return crateDir
}

func setTargetEnv(t *testing.T, osName, arch, vendor, triple string) string {
	t.Helper()
	outDir := t.TempDir()
	t.Setenv(buildenv.EnvTargetOS, osName)
	t.Setenv(buildenv.EnvTargetArch, arch)
	t.Setenv(buildenv.EnvTargetVendor, vendor)
	t.Setenv(buildenv.EnvTarget, triple)
	t.Setenv(buildenv.EnvOutDir, outDir)
	return outDir
}

func outputLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

// Scenario A: default environment, supported platform, bindgen off.
func TestBuildPregenerated(t *testing.T) {
	crateDir := setupCrate(t)
	outDir := setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")

	var buf bytes.Buffer
	runner := &fakeRunner{}
	gen := &fakeGenerator{}

	b, err := New(crateDir, Options{Emit: &buf, Runner: runner, Bindgen: gen, FindTool: fakeTool})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	require.Equal(t, 1, runner.calls)
	require.Empty(t, gen.calls, "pregenerated bindings need no generation")

	require.Equal(t, []string{
		"cargo:rustc-cfg=linux_x86_64",
		"cargo:rustc-link-search=native=" + filepath.Join(outDir, "build", "artifacts"),
		"cargo:rustc-link-lib=static=aws_lc_0_1_0_crypto",
		"cargo:rustc-link-lib=static=aws_lc_0_1_0_rust_wrapper",
		"cargo:include=" + filepath.Join(outDir, "include"),
		"cargo:rerun-if-changed=" + filepath.Join(crateDir, "Crate.toml"),
		"cargo:rerun-if-changed=" + filepath.Join(crateDir, "aws-lc"),
		"cargo:rerun-if-env-changed=AWS_LC_SYS_STATIC",
	}, outputLines(&buf))

	// first-party and vendored headers both staged
	_, err = os.Stat(filepath.Join(outDir, "include", "rust_wrapper.h"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "include", "openssl", "base.h"))
	require.NoError(t, err)
}

// Scenario B: bindgen feature on, platform outside the supported set.
func TestBuildGenerateFallback(t *testing.T) {
	crateDir := setupCrate(t)
	outDir := setTargetEnv(t, "windows", "x86_64", "pc", "x86_64-pc-windows-msvc")

	var buf bytes.Buffer
	gen := &fakeGenerator{}

	b, err := New(crateDir, Options{
		Features: []string{"bindgen"},
		Emit:     &buf,
		Runner:   &fakeRunner{},
		Bindgen:  gen,
		FindTool: fakeTool,
	})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	require.Contains(t, outputLines(&buf), "cargo:rustc-cfg=use_bindgen_generated")

	require.Len(t, gen.calls, 1)
	require.False(t, gen.calls[0].IncludeSSL)
	require.Equal(t, filepath.Join(outDir, "bindings.rs"), gen.calls[0].Output)
}

func TestBuildGenerateWithSSL(t *testing.T) {
	crateDir := setupCrate(t)
	setTargetEnv(t, "windows", "x86_64", "pc", "x86_64-pc-windows-msvc")

	var buf bytes.Buffer
	gen := &fakeGenerator{}

	b, err := New(crateDir, Options{
		Features: []string{"bindgen", "ssl"},
		Emit:     &buf,
		Runner:   &fakeRunner{},
		Bindgen:  gen,
		FindTool: fakeTool,
	})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	require.Len(t, gen.calls, 1)
	require.True(t, gen.calls[0].IncludeSSL)
	require.Contains(t, outputLines(&buf), "cargo:rustc-link-lib=static=aws_lc_0_1_0_ssl")
}

// Scenario C: internal-generate and private-internals both active.
func TestBuildConflictAbortsEarly(t *testing.T) {
	crateDir := setupCrate(t)
	setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")
	t.Setenv(buildenv.EnvInternalBindgen, "1")
	t.Setenv(buildenv.EnvPrivateInternals, "1")

	var buf bytes.Buffer
	runner := &fakeRunner{}
	gen := &fakeGenerator{}

	probed := false
	b, err := New(crateDir, Options{Emit: &buf, Runner: runner, Bindgen: gen,
		FindTool: func() (toolchain.Tool, error) {
			probed = true
			return toolchain.Tool{Name: "cmake"}, nil
		}})
	require.NoError(t, err)

	err = b.Build()
	require.ErrorIs(t, err, bindings.ErrConflict)
	require.False(t, probed, "the conflict must abort before the dependency probe")

	require.Zero(t, runner.calls, "the native build must not start")
	require.Empty(t, gen.calls)
	require.Empty(t, buf.String(), "no directives on abort")

	_, err = os.Stat(filepath.Join(crateDir, "src"))
	require.True(t, os.IsNotExist(err), "no writes to the versioned source locations")
}

func TestBuildDynamicLinkage(t *testing.T) {
	crateDir := setupCrate(t)
	setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")
	t.Setenv(buildenv.EnvStatic, "no")

	var buf bytes.Buffer
	runner := &fakeRunner{}

	b, err := New(crateDir, Options{Emit: &buf, Runner: runner, Bindgen: &fakeGenerator{}, FindTool: fakeTool})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	shared, _ := runner.cfg.Lookup("BUILD_SHARED_LIBS")
	require.Equal(t, "1", shared)
	require.Contains(t, outputLines(&buf), "cargo:rustc-link-lib=dylib=aws_lc_0_1_0_crypto")
}

func TestBuildPrivateInternalsInclude(t *testing.T) {
	crateDir := setupCrate(t)
	outDir := setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")
	t.Setenv(buildenv.EnvPrivateInternals, "1")

	var buf bytes.Buffer
	b, err := New(crateDir, Options{Emit: &buf, Runner: &fakeRunner{}, Bindgen: &fakeGenerator{}, FindTool: fakeTool})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	lines := outputLines(&buf)
	require.Contains(t, lines, "cargo:include="+filepath.Join(crateDir, "aws-lc", "crypto", "rand_extra"))
	require.Contains(t, lines, "cargo:include="+filepath.Join(outDir, "include"))
}

func TestBuildExtraIncludes(t *testing.T) {
	crateDir := setupCrate(t)
	outDir := setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")

	extra := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extra, "extra.h"), []byte("// extra"), 0o644))
	t.Setenv(buildenv.EnvExtraIncludes, extra)

	var buf bytes.Buffer
	b, err := New(crateDir, Options{Emit: &buf, Runner: &fakeRunner{}, Bindgen: &fakeGenerator{}, FindTool: fakeTool})
	require.NoError(t, err)
	require.NoError(t, b.Build())

	require.Contains(t, outputLines(&buf), "cargo:include="+extra)
	_, err = os.Stat(filepath.Join(outDir, "include", "extra.h"))
	require.NoError(t, err, "extra include paths participate in staging")
}

// With every collaborator faked, a build must succeed on a machine that has
// no native tooling installed at all.
func TestBuildNeedsNoToolsOnPath(t *testing.T) {
	crateDir := setupCrate(t)
	setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")
	t.Setenv("PATH", t.TempDir())

	var buf bytes.Buffer
	runner := &fakeRunner{}

	b, err := New(crateDir, Options{Emit: &buf, Runner: runner, Bindgen: &fakeGenerator{}, FindTool: fakeTool})
	require.NoError(t, err)
	require.NoError(t, b.Build())
	require.Equal(t, 1, runner.calls)
}

func TestNewRejectsUnknownFeature(t *testing.T) {
	crateDir := setupCrate(t)
	setTargetEnv(t, "linux", "x86_64", "unknown", "x86_64-unknown-linux-gnu")

	_, err := New(crateDir, Options{Features: []string{"quantum"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown feature")
}
