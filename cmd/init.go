// aws-lc-build init [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ctz/aws-lc-build/internal/manifest"
	"github.com/ctz/aws-lc-build/internal/msg"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

// initIn writes a starter manifest into an existing directory.
func initIn(dir string) {
	writefile(`[package]
name = "aws-lc-sys"
version = "0.0.0"

[features]
default = []

[upstream]
git = "https://github.com/aws/aws-lc.git"
ref = "main"
`, dir, manifest.Filename)
}

func doInit(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", target, err)
	}
	initIn(target)
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter crate manifest",
	Long:  `Write a starter crate manifest. If no path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doInit,
}

func init() {
	// aws-lc-build init subcommand
	rootCmd.AddCommand(initCmd)
}
