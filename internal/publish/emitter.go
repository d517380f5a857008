package publish

import (
	"fmt"
	"io"

	"github.com/ctz/aws-lc-build/internal/buildenv"
)

// Emitter writes directives for the consuming build graph, one per line,
// in the cargo build-script syntax.
type Emitter struct {
	W io.Writer
}

// Cfg announces a conditional-compilation flag.
func (e Emitter) Cfg(name string) {
	fmt.Fprintf(e.W, "cargo:rustc-cfg=%s\n", name)
}

// LinkSearch announces a native library search path.
func (e Emitter) LinkSearch(dir string) {
	fmt.Fprintf(e.W, "cargo:rustc-link-search=native=%s\n", dir)
}

// LinkLib announces one library to link, with the build's linkage kind.
func (e Emitter) LinkLib(t buildenv.LibType, name string) {
	fmt.Fprintf(e.W, "cargo:rustc-link-lib=%s=%s\n", t.LinkKind(), name)
}

// Include announces an include location to downstream consumers.
func (e Emitter) Include(dir string) {
	fmt.Fprintf(e.W, "cargo:include=%s\n", dir)
}

// RerunIfChanged declares a rebuild trigger on a file or directory.
func (e Emitter) RerunIfChanged(path string) {
	fmt.Fprintf(e.W, "cargo:rerun-if-changed=%s\n", path)
}

// RerunIfEnvChanged declares a rebuild trigger on an environment variable.
func (e Emitter) RerunIfEnvChanged(key string) {
	fmt.Fprintf(e.W, "cargo:rerun-if-env-changed=%s\n", key)
}
