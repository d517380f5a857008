// Package bindings decides how foreign-function bindings are obtained for
// the current target and, when generation is needed, drives the external
// binding generator.
package bindings

import (
	"errors"
	"fmt"

	"github.com/ctz/aws-lc-build/internal/buildenv"
)

// Strategy is the single binding acquisition mode active for a build.
type Strategy int

const (
	// Pregenerated bindings ship with the package; nothing is written.
	Pregenerated Strategy = iota
	// GenerateAtBuildTime writes bindings to a build-local location.
	GenerateAtBuildTime
	// GenerateIntoSourceTree writes versioned per-platform bindings into
	// the package source for maintainers to commit.
	GenerateIntoSourceTree
)

func (s Strategy) String() string {
	switch s {
	case Pregenerated:
		return "pregenerated"
	case GenerateAtBuildTime:
		return "generate"
	case GenerateIntoSourceTree:
		return "generate-src"
	}
	panic("bindings: unknown Strategy")
}

// ErrConflict is the fatal precondition violation of enabling the
// maintainer generation mode and the private-internals surface together.
var ErrConflict = errors.New(
	buildenv.EnvPrivateInternals + "=1 is not supported when " + buildenv.EnvInternalBindgen + "=1")

// platform is an (os, arch) pair for which pregenerated bindings exist,
// with the conditional-compilation flag announced when it matches.
type platform struct {
	os, arch string
	cfg      string
}

// The fixed set of targets with pregenerated bindings.
var supported = []platform{
	{"linux", "x86", "linux_x86"},
	{"linux", "x86_64", "linux_x86_64"},
	{"linux", "aarch64", "linux_aarch64"},
	{"macos", "x86_64", "macos_x86_64"},
}

// FallbackCfg is announced when no pregenerated bindings cover the target
// and build-time generation is forced.
const FallbackCfg = "use_bindgen_generated"

// Resolution is the outcome of strategy resolution: the single active
// strategy plus the conditional-compilation flags to announce.
type Resolution struct {
	Strategy Strategy
	Cfgs     []string
}

// Resolve picks the binding strategy from the bindgen feature flag and the
// environment toggles carried on the target. The conflict check runs first:
// it must abort the build before any other work happens.
func Resolve(target *buildenv.Target, bindgenFeature bool) (Resolution, error) {
	if target.InternalBindgen && target.PrivateInternals {
		return Resolution{}, ErrConflict
	}

	required := bindgenFeature
	pregenerated := !required || target.InternalBindgen

	var res Resolution
	matched := false
	for _, p := range supported {
		if p.os == target.OS && p.arch == target.Arch && pregenerated {
			res.Cfgs = append(res.Cfgs, p.cfg)
			matched = true
		}
	}

	if !matched {
		// Outside the supported set the shipped bindings cannot be trusted,
		// whatever the feature flag said.
		res.Cfgs = append(res.Cfgs, FallbackCfg)
		required = true
	}

	switch {
	case target.InternalBindgen:
		res.Strategy = GenerateIntoSourceTree
	case required:
		res.Strategy = GenerateAtBuildTime
	default:
		res.Strategy = Pregenerated
	}

	return res, nil
}

// PlatformFilePrefix names per-platform binding files in the source tree.
func PlatformFilePrefix(target *buildenv.Target, name string) string {
	return fmt.Sprintf("%s_%s_%s", target.OS, target.Arch, name)
}
