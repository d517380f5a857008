// Package buildenv reads the target-platform facts and user overrides the
// consuming build graph hands us through the process environment. Every later
// stage takes these as plain values; nothing else reads os.Getenv.
package buildenv

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consumed by the orchestrator.
const (
	EnvTargetOS     = "CARGO_CFG_TARGET_OS"
	EnvTargetArch   = "CARGO_CFG_TARGET_ARCH"
	EnvTargetVendor = "CARGO_CFG_TARGET_VENDOR"
	EnvTarget       = "TARGET"
	EnvOutDir       = "OUT_DIR"
	EnvOptLevel     = "OPT_LEVEL"

	EnvStatic           = "AWS_LC_SYS_STATIC"
	EnvInternalBindgen  = "AWS_LC_RUST_INTERNAL_BINDGEN"
	EnvPrivateInternals = "AWS_LC_RUST_PRIVATE_INTERNALS"
	EnvExtraIncludes    = "AWS_LC_SYS_INCLUDES"
)

// LibType selects between statically and dynamically linked output. It is
// decided once per build and applies to every library the build produces.
type LibType int

const (
	Static LibType = iota
	Dynamic
)

// LinkKind returns the linkage kind used in link directives.
func (t LibType) LinkKind() string {
	switch t {
	case Static:
		return "static"
	case Dynamic:
		return "dylib"
	}
	panic("buildenv: unknown LibType")
}

// SharedFlag returns the value for the native build's shared-vs-static switch.
func (t LibType) SharedFlag() string {
	if t == Dynamic {
		return "1"
	}
	return "0"
}

// ParseLibType interprets the AWS_LC_SYS_STATIC override. Only an explicit
// "negative" value (leading "0", "n" or "off", case-insensitive) selects
// dynamic output; unset or anything else stays static.
func ParseLibType(value string, ok bool) LibType {
	if !ok {
		return Static
	}
	v := strings.ToLower(value)
	if strings.HasPrefix(v, "0") || strings.HasPrefix(v, "n") || strings.HasPrefix(v, "off") {
		return Dynamic
	}
	return Static
}

// BuildType is the coarse optimization bucket derived from OPT_LEVEL.
type BuildType int

const (
	BuildDefault BuildType = iota // no CMAKE_BUILD_TYPE define
	BuildRelWithDebInfo
	BuildRelease
)

func (t BuildType) String() string {
	switch t {
	case BuildDefault:
		return ""
	case BuildRelWithDebInfo:
		return "relwithdebinfo"
	case BuildRelease:
		return "release"
	}
	panic("buildenv: unknown BuildType")
}

func parseBuildType(optLevel string) BuildType {
	switch optLevel {
	case "", "0":
		return BuildDefault
	case "1", "2":
		return BuildRelWithDebInfo
	default:
		return BuildRelease
	}
}

// CargoOS translates a Go runtime OS name into the cargo spelling the rest
// of the pipeline uses.
func CargoOS(goos string) string {
	if goos == "darwin" {
		return "macos"
	}
	return goos
}

// CargoArch translates a Go runtime architecture name into the cargo
// spelling the rest of the pipeline uses.
func CargoArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x86"
	}
	return goarch
}

// Target holds everything the pipeline needs to know about the platform
// being built for and the environment-driven switches.
type Target struct {
	OS     string
	Arch   string
	Vendor string
	Triple string

	OutDir    string
	BuildType BuildType
	LibType   LibType

	InternalBindgen  bool
	PrivateInternals bool
	ExtraIncludes    []string
}

// Probe reads the fixed set of environment variables. Cross-compilation
// facts are mandatory: without them no later stage can reason about the
// target, so a missing variable is an error, not a default.
func Probe() (*Target, error) {
	t := &Target{}

	for _, v := range []struct {
		key string
		dst *string
	}{
		{EnvTargetOS, &t.OS},
		{EnvTargetArch, &t.Arch},
		{EnvTargetVendor, &t.Vendor},
		{EnvTarget, &t.Triple},
		{EnvOutDir, &t.OutDir},
	} {
		val, ok := os.LookupEnv(v.key)
		if !ok || val == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", v.key)
		}
		*v.dst = val
	}

	t.BuildType = parseBuildType(os.Getenv(EnvOptLevel))
	t.LibType = ParseLibType(os.LookupEnv(EnvStatic))
	t.InternalBindgen = os.Getenv(EnvInternalBindgen) == "1"
	t.PrivateInternals = os.Getenv(EnvPrivateInternals) == "1"

	if extra, ok := os.LookupEnv(EnvExtraIncludes); ok && extra != "" {
		t.ExtraIncludes = strings.Split(extra, ":")
	}

	return t, nil
}
