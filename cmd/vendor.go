// aws-lc-build vendor [crate path]
package cmd

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ctz/aws-lc-build/internal/buildenv"
	"github.com/ctz/aws-lc-build/internal/manifest"
	"github.com/ctz/aws-lc-build/internal/msg"
	"github.com/ctz/aws-lc-build/internal/upstream"
)

// doVendor fetches the pinned native sources without requiring the full
// cross-compilation environment the build itself needs: maintainers run
// this from a plain shell.
func doVendor(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	env := manifest.NewEnv(buildenv.CargoOS(runtime.GOOS), buildenv.CargoArch(runtime.GOARCH), "")
	man, err := manifest.ParseFile(filepath.Join(target, manifest.Filename), env)
	if err != nil {
		msg.Fatal("failed to read crate manifest: %v", err)
	}

	if err := upstream.Ensure(filepath.Join(target, upstream.VendorDir), man.Upstream); err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("vendored sources are in place")
}

var vendorCmd = &cobra.Command{
	Use:   "vendor [crate path]",
	Short: "Fetch the pinned upstream sources",
	Long:  `Fetch the pinned upstream sources into the crate's vendor directory. If no crate path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doVendor,
}

func init() {
	// aws-lc-build vendor subcommand
	rootCmd.AddCommand(vendorCmd)
}
