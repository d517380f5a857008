// Package cmake turns the probed target facts into a native build
// configuration and drives the external cmake tool to completion.
package cmake

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ctz/aws-lc-build/internal/buildenv"
	"github.com/ctz/aws-lc-build/internal/toolchain"
)

// Define is a single -D key/value handed to cmake. Defines keep their
// insertion order so the configure command line is reproducible.
type Define struct {
	Key   string
	Value string
}

// Config is the fully prepared native build invocation. It is constructed
// once by Prepare and never mutated afterwards; the invoker only reads it.
type Config struct {
	Tool      toolchain.Tool
	SourceDir string
	BuildDir  string
	Generator string // optional -G selection
	Defines   []Define
	Env       []string // KEY=VALUE overrides for the tool's environment
}

func (c *Config) define(key, value string) {
	c.Defines = append(c.Defines, Define{Key: key, Value: value})
}

// Lookup returns the value of a define and whether it is set.
func (c *Config) Lookup(key string) (string, bool) {
	for _, d := range c.Defines {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

// ConfigureArgs renders the argument list for the configure step.
func (c *Config) ConfigureArgs() []string {
	args := []string{"-S", c.SourceDir, "-B", c.BuildDir}
	if c.Generator != "" {
		args = append(args, "-G", c.Generator)
	}
	for _, d := range c.Defines {
		args = append(args, "-D"+d.Key+"="+d.Value)
	}
	args = append(args, "--no-warn-unused-cli")
	return args
}

// Options are the inputs to Prepare beyond the target facts.
type Options struct {
	Prefix        string // version-derived symbol prefix
	PrefixHeaders string // directory of prefix-mapping headers
	SSL           bool   // build the TLS layer
	Asan          bool   // sanitizer instrumentation
	Generator     string // optional cmake generator
	ExtraDefines  map[string]string
}

// Prepare produces the build configuration deterministically from the
// target facts and options.
func Prepare(tool toolchain.Tool, target *buildenv.Target, sourceDir string, opts Options) *Config {
	cfg := &Config{
		Tool:      tool,
		SourceDir: sourceDir,
		BuildDir:  filepath.Join(target.OutDir, "build"),
		Generator: opts.Generator,
	}

	cfg.define("BUILD_SHARED_LIBS", target.LibType.SharedFlag())

	if bt := target.BuildType.String(); bt != "" {
		cfg.define("CMAKE_BUILD_TYPE", bt)
	}

	// The prefix is set unconditionally: it is what lets several versions of
	// the library coexist in one link without symbol clashes.
	cfg.define("BORINGSSL_PREFIX", opts.Prefix)
	cfg.define("BORINGSSL_PREFIX_HEADERS", opts.PrefixHeaders)

	// Flags that minimize the produced library and its build dependencies.
	cfg.define("BUILD_TESTING", "OFF")
	if opts.SSL {
		cfg.define("BUILD_LIBSSL", "ON")
	} else {
		cfg.define("BUILD_LIBSSL", "OFF")
	}
	cfg.define("DISABLE_PERL", "ON")
	cfg.define("DISABLE_GO", "ON")

	if target.Vendor == "apple" {
		if target.OS == "ios" {
			cfg.define("CMAKE_SYSTEM_NAME", "iOS")
			if strings.HasSuffix(target.Triple, "-ios-sim") {
				cfg.define("CMAKE_OSX_SYSROOT", "iphonesimulator")
			}
		}
		// The host toolchain's architecture detection is unreliable for
		// cross-compiles, so pin it.
		if target.Arch == "aarch64" {
			cfg.define("CMAKE_OSX_ARCHITECTURES", "arm64")
		}
	}

	if opts.Asan {
		// Force a toolchain known to support the instrumentation. This
		// replaces any ambient compiler selection outright.
		cfg.Env = append(cfg.Env,
			"CC=/usr/bin/clang",
			"CXX=/usr/bin/clang++",
			"ASM=/usr/bin/clang",
		)
		cfg.define("ASAN", "1")
	}

	// Manifest-supplied defines come last, in sorted order.
	keys := make([]string, 0, len(opts.ExtraDefines))
	for k := range opts.ExtraDefines {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		cfg.define(k, opts.ExtraDefines[k])
	}

	return cfg
}

// ArtifactDir returns the directory the native build places its linkable
// outputs under, relative to the build output directory.
func ArtifactDir(outDir string) string {
	return filepath.Join(outDir, "build", "artifacts")
}

func fmtDefineCount(n int) string {
	if n == 1 {
		return "1 define"
	}
	return fmt.Sprintf("%d defines", n)
}
