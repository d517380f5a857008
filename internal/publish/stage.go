package publish

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ctz/aws-lc-build/internal/msg"
)

// StageIncludes merges the candidate include directories into stagingDir.
// Sources are visited in priority order and a name that already exists in
// the staging tree is never overwritten, so the earliest-listed source owns
// every collision. Re-staging from the same inputs is a no-op.
//
// Candidate directories that do not exist are skipped: not every crate
// ships a generated-include tree, and extra include paths are user input.
func StageIncludes(stagingDir string, sources []string, progress io.Writer) error {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return fmt.Errorf("create include staging directory: %w", err)
	}

	var bar *msg.ProgressBar
	if progress != nil {
		bar = msg.NewProgressBar(totalSize(sources), 2, progress)
		defer bar.Finish()
	}

	for _, src := range sources {
		entries, err := os.ReadDir(src)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			from := filepath.Join(src, entry.Name())
			to := filepath.Join(stagingDir, entry.Name())
			if entry.IsDir() {
				err = mergeDir(from, to, bar)
			} else {
				err = copyIfAbsent(from, to, bar)
			}
			if err != nil {
				return fmt.Errorf("staging %s: %w", from, err)
			}
		}
	}

	return nil
}

// mergeDir recursively copies src into dst, skipping anything dst already
// has. Earlier sources have already claimed those names.
func mergeDir(src, dst string, bar *msg.ProgressBar) error {
	if stat, err := os.Stat(dst); err == nil && !stat.IsDir() {
		return nil // an earlier source claimed the name with a plain file
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			err = mergeDir(from, to, bar)
		} else {
			err = copyIfAbsent(from, to, bar)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyIfAbsent(src, dst string, bar *msg.ProgressBar) error {
	if _, err := os.Stat(dst); err == nil {
		return nil // earlier source wins
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	var w io.Writer = out
	if bar != nil {
		w = io.MultiWriter(out, bar)
	}
	if _, err := io.Copy(w, in); err != nil {
		return err
	}
	return out.Close()
}

func totalSize(sources []string) int64 {
	var total int64
	for _, src := range sources {
		filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
			return nil
		})
	}
	return total
}
