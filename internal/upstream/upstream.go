// Package upstream materializes the vendored native library sources when
// they are not already present in the crate directory, from the pinned
// location named in the manifest.
package upstream

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/ctz/aws-lc-build/internal/manifest"
	"github.com/ctz/aws-lc-build/internal/msg"
)

var errNoSource = errors.New("vendored sources are missing and the manifest has no [upstream] section to fetch them from")

// VendorDir is the directory under the crate root that holds the native
// library's source tree.
const VendorDir = "aws-lc"

// Ensure makes sure dir holds the vendored source tree. If it already
// exists it is left untouched: the checkout is pinned, not synced.
func Ensure(dir string, pin manifest.UpstreamSection) error {
	stat, err := os.Stat(dir)
	if err == nil && stat.IsDir() {
		return nil
	}

	if pin.Git == "" {
		return errNoSource
	}

	msg.Info("fetching %s into %s", pin.Git, dir)
	if err := clone(dir, pin); err != nil {
		return fmt.Errorf("failed to fetch vendored sources: %w", err)
	}
	return nil
}

func clone(dir string, pin manifest.UpstreamSection) error {
	cloneOptions := &git.CloneOptions{
		URL:               pin.Git,
		Progress:          &msg.IndentWriter{Indent: "  ", W: os.Stderr},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if pin.Ref == "" {
		cloneOptions.Depth = 1 // nothing is pinned, a shallow clone of the tip will do
	}

	repo, err := git.PlainClone(dir, cloneOptions)
	if err != nil {
		return err
	}

	if pin.Ref == "" {
		return nil
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("could not get worktree: %w", err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(pin.Ref))
	if err != nil {
		return fmt.Errorf("could not resolve revision %q: %w", pin.Ref, err)
	}

	if err := w.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout %q: %w", pin.Ref, err)
	}

	return nil
}
