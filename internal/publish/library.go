// Package publish stages the merged include tree and announces link and
// include metadata to the consuming build graph.
package publish

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// Library identifies a linkable output of the native build.
type Library int

const (
	RustWrapper Library = iota
	Crypto
	SSL
)

func (l Library) base() string {
	switch l {
	case RustWrapper:
		return "rust_wrapper"
	case Crypto:
		return "crypto"
	case SSL:
		return "ssl"
	}
	panic("publish: unknown Library")
}

// Name returns the link name of the library, carrying the version-derived
// prefix when one is set.
func (l Library) Name(prefix string) string {
	if prefix != "" {
		return prefix + "_" + l.base()
	}
	return l.base()
}

// Locate searches the artifact directory for the built library file. The
// filename varies with platform and linkage, so match any of the usual
// shapes anywhere under the artifact tree.
func (l Library) Locate(artifactDir, prefix string) (string, bool) {
	name := l.Name(prefix)
	pattern := fmt.Sprintf("**/{lib%[1]s.*,%[1]s.lib,%[1]s.dll}", name)

	matches, err := doublestar.Glob(os.DirFS(artifactDir), pattern, doublestar.WithFilesOnly())
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
