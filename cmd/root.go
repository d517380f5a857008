// aws-lc-build [crate path], aws-lc-build build [crate path]
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctz/aws-lc-build/internal/builder"
	"github.com/ctz/aws-lc-build/internal/msg"
)

// cmake -G spellings keyed by flag value. Empty means no -G at all: cmake
// picks the platform default.
var cmakeGenerators = map[string]string{
	"default": "",
	"ninja":   "Ninja",
	"make":    "Unix Makefiles",
}

var (
	flagFeatures          []string
	flagNoDefaultFeatures bool
	flagGenerator         EnumValue = NewEnumValue("default", generatorHelp())
)

func generatorHelp() map[string]string {
	help := make(map[string]string, len(cmakeGenerators))
	for name, g := range cmakeGenerators {
		if g == "" {
			g = "let cmake pick the platform default"
		}
		help[name] = g
	}
	return help
}

// generatorArg maps the flag value to cmake's -G spelling.
func generatorArg() string {
	return cmakeGenerators[flagGenerator.Value()]
}

func doBuild(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	b, err := builder.New(target, builder.Options{
		Features:          flagFeatures,
		NoDefaultFeatures: flagNoDefaultFeatures,
		CMakeGenerator:    generatorArg(),
		Progress:          true,
	})
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.Build(); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aws-lc-build [crate path]",
	Short: "Build orchestrator for the AWS-LC native library",
	Long:  `Build orchestrator for the AWS-LC native library`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [crate path]",
	Short: "Run the native build and emit directives",
	Long:  `Run the native build and emit directives. If no crate path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// aws-lc-build build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&flagFeatures, "features", "f", nil, "Enable the listed features (bindgen, ssl, asan)")
	cmd.Flags().BoolVar(&flagNoDefaultFeatures, "no-default-features", false, "Ignore the manifest's default features")
	cmd.Flags().VarP(&flagGenerator, "generator", "g", "cmake generator, one of "+flagGenerator.HelpString())
	cmd.RegisterFlagCompletionFunc("generator", flagGenerator.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
