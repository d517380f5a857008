package bindings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctz/aws-lc-build/internal/buildenv"
)

type fakeGenerator struct {
	calls []Options
}

func (g *fakeGenerator) Generate(sourceDir string, opts Options) error {
	g.calls = append(g.calls, opts)
	return nil
}

func materializeTarget(outDir string) *buildenv.Target {
	return &buildenv.Target{OS: "linux", Arch: "x86_64", OutDir: outDir}
}

func TestMaterializePregenerated(t *testing.T) {
	gen := &fakeGenerator{}
	err := Materialize(Resolution{Strategy: Pregenerated}, gen, materializeTarget(t.TempDir()), "/crate", "aws_lc_1_0_0", true)
	require.NoError(t, err)
	require.Empty(t, gen.calls)
}

func TestMaterializeAtBuildTime(t *testing.T) {
	out := t.TempDir()

	for _, ssl := range []bool{false, true} {
		gen := &fakeGenerator{}
		err := Materialize(Resolution{Strategy: GenerateAtBuildTime}, gen, materializeTarget(out), "/crate", "aws_lc_1_0_0", ssl)
		require.NoError(t, err)
		require.Len(t, gen.calls, 1)

		call := gen.calls[0]
		require.Equal(t, "aws_lc_1_0_0", call.BuildPrefix)
		require.Equal(t, ssl, call.IncludeSSL)
		require.True(t, call.DisablePrelude)
		require.Equal(t, filepath.Join(out, "bindings.rs"), call.Output)
	}
}

func TestMaterializeIntoSourceTree(t *testing.T) {
	gen := &fakeGenerator{}
	err := Materialize(Resolution{Strategy: GenerateIntoSourceTree}, gen, materializeTarget(t.TempDir()), "/crate", "aws_lc_1_0_0", true)
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)

	require.False(t, gen.calls[0].IncludeSSL)
	require.Equal(t, filepath.Join("/crate", "src", "linux_x86_64_crypto.rs"), gen.calls[0].Output)

	require.True(t, gen.calls[1].IncludeSSL)
	require.Equal(t, filepath.Join("/crate", "src", "linux_x86_64_crypto_ssl.rs"), gen.calls[1].Output)

	require.False(t, gen.calls[0].DisablePrelude)
	require.False(t, gen.calls[1].DisablePrelude)
}

func TestMaterializeWithoutGenerator(t *testing.T) {
	for _, strategy := range []Strategy{GenerateAtBuildTime, GenerateIntoSourceTree} {
		err := Materialize(Resolution{Strategy: strategy}, nil, materializeTarget(t.TempDir()), "/crate", "p", false)
		require.ErrorIs(t, err, ErrNoGenerator)
	}
}
