// Package manifest parses Crate.toml, the per-crate description of the
// native library build: package identity, feature sets, the pinned upstream
// source, the external binding generator and extra cmake defines. Sections
// may carry expr-conditional subsections evaluated against the target
// environment, and string values support {{...}} interpolation.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

const Filename = "Crate.toml"

// Known feature names. Anything else in [features] or --features is a
// configuration error.
const (
	FeatureBindgen = "bindgen"
	FeatureSSL     = "ssl"
	FeatureAsan    = "asan"
)

var knownFeatures = []string{FeatureBindgen, FeatureSSL, FeatureAsan}

type Manifest struct {
	Package  PackageSection  `toml:"package"`
	Features FeaturesSection `toml:"features"`
	Bindgen  BindgenSection  `toml:"bindgen"`
	Upstream UpstreamSection `toml:"upstream"`
	CMake    CMakeSection    `toml:"cmake"`
}

// PackageSection defines the [package] section.
type PackageSection struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// PrefixString derives the symbol prefix that keeps multiple linked versions
// of the native library from clashing: aws_lc_<version with dots replaced>.
func (p PackageSection) PrefixString() string {
	return "aws_lc_" + strings.ReplaceAll(p.Version, ".", "_")
}

// FeaturesSection defines the [features] section.
type FeaturesSection struct {
	Default []string `toml:"default"`
}

// BindgenSection names the external binding-generator executable. An empty
// Tool means binding generation is not available in this build.
type BindgenSection struct {
	Tool string `toml:"tool"`
}

// UpstreamSection pins the vendored library's source location.
type UpstreamSection struct {
	Git string `toml:"git"`
	Ref string `toml:"ref"`
}

// CMakeSection defines the [cmake] section: extra defines appended after the
// fixed configuration rules. Subsections keyed by an expr condition merge in
// when the condition holds for the target environment.
type CMakeSection struct {
	Defines map[string]string `toml:"defines"`
}

func (s *CMakeSection) merge(other CMakeSection) {
	if s.Defines == nil && other.Defines != nil {
		s.Defines = make(map[string]string)
	}
	for k, v := range other.Defines {
		s.Defines[k] = v
	}
}

// Env is the expression environment visible to conditional sections and
// {{...}} interpolation.
type Env struct {
	TargetOS     string            `expr:"target_os"`
	TargetArch   string            `expr:"target_arch"`
	TargetVendor string            `expr:"target_vendor"`
	Environ      map[string]string `expr:"environ"`
}

func NewEnv(targetOS, targetArch, targetVendor string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return Env{
		TargetOS:     targetOS,
		TargetArch:   targetArch,
		TargetVendor: targetVendor,
		Environ:      environ,
	}
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalCMakeSection parses the [cmake] section, then evaluates and merges
// any conditional subsections whose key compiles as an expr condition.
func unmarshalCMakeSection(rawCfg map[string]any, dst *CMakeSection, env Env) error {
	sectionData, ok := rawCfg["cmake"]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return errors.New("invalid [cmake] section format: expected a table")
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok && key != "defines" {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [cmake] section: %w", err)
		}
	}

	// deterministic merge order for overlapping conditions
	conditions := make([]string, 0, len(conditionalFields))
	for cond := range conditionalFields {
		conditions = append(conditions, cond)
	}
	slices.Sort(conditions)

	for _, condition := range conditions {
		program, err := expr.Compile(condition, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile condition [cmake.%q]: %w", condition, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to evaluate condition [cmake.%q]: %w", condition, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection CMakeSection
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[condition])), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [cmake.%q]: %w", condition, err)
		}
		dst.merge(condSection)
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		builder.WriteString(s[lastIndex:matchIndexes[0]])

		expression := strings.TrimSpace(s[matchIndexes[2]:matchIndexes[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = matchIndexes[1]
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func Parse(rdr io.Reader, env Env) (*Manifest, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in manifest: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	m := new(Manifest)

	if err := unmarshalSection(rawConfig, "package", &m.Package); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "features", &m.Features); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "bindgen", &m.Bindgen); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "upstream", &m.Upstream); err != nil {
		return nil, err
	}
	if err := unmarshalCMakeSection(rawConfig, &m.CMake, env); err != nil {
		return nil, err
	}

	if m.Package.Version == "" {
		return nil, errors.New("manifest is missing package.version")
	}

	return m, nil
}

// ParseFile parses and validates a manifest from a filepath.
func ParseFile(path string, env Env) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(bufio.NewReader(f), env)
}

// ResolveFeatures combines the manifest's default features with the
// requested list. Unknown names are rejected rather than ignored: a typo in
// a feature toggle must not silently change what gets linked.
func (m *Manifest) ResolveFeatures(requested []string, noDefault bool) (map[string]bool, error) {
	features := make(map[string]bool)

	add := func(names []string, origin string) error {
		for _, name := range names {
			if !slices.Contains(knownFeatures, name) {
				return fmt.Errorf("unknown feature %q (from %s), known features: %s",
					name, origin, strings.Join(knownFeatures, ", "))
			}
			features[name] = true
		}
		return nil
	}

	if !noDefault {
		if err := add(m.Features.Default, "manifest default features"); err != nil {
			return nil, err
		}
	}
	if err := add(requested, "--features"); err != nil {
		return nil, err
	}

	return features, nil
}
