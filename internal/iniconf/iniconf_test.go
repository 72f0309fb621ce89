package iniconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `; simulator configuration
[dram]
protocol = DDR4
channels = 2

[other]
epoch_period = 100000
output_prefix = results/ddr4_
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGet(t *testing.T) {
	path := writeConfig(t, "ddr4.ini", sample)

	v, err := Get(path, "dram", "protocol")
	require.NoError(t, err)
	require.Equal(t, "DDR4", v)

	prefix, err := OutputPrefix(path)
	require.NoError(t, err)
	require.Equal(t, "results/ddr4_", prefix)
}

func TestGet_MissingSection(t *testing.T) {
	path := writeConfig(t, "a.ini", "[dram]\nprotocol = HBM\n")

	_, err := Get(path, "other", "output_prefix")
	require.ErrorIs(t, err, ErrSectionNotFound)
}

func TestGet_MissingKey(t *testing.T) {
	path := writeConfig(t, "a.ini", "[other]\nepoch_period = 10\n")

	_, err := OutputPrefix(path)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestGet_MissingFile(t *testing.T) {
	_, err := Get(filepath.Join(t.TempDir(), "none.ini"), "other", "output_prefix")
	require.Error(t, err)
}

func TestGet_InlineSemicolonKept(t *testing.T) {
	path := writeConfig(t, "a.ini", "[other]\noutput_prefix = out;1/\n")

	prefix, err := OutputPrefix(path)
	require.NoError(t, err)
	require.Equal(t, "out;1/", prefix)
}

func TestOverride_LeavesOriginalUntouched(t *testing.T) {
	path := writeConfig(t, "ddr4.ini", sample)

	tmp, err := OverrideOutputPrefix(path, "/runs/batch1/ddr4")
	require.NoError(t, err)
	defer tmp.Close()

	orig, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, sample, string(orig))

	require.NotEqual(t, path, tmp.Path())
	require.Equal(t, ".ini", filepath.Ext(tmp.Path()))

	prefix, err := OutputPrefix(tmp.Path())
	require.NoError(t, err)
	require.Equal(t, "/runs/batch1/ddr4", prefix)

	// Other keys survive the rewrite.
	v, err := Get(tmp.Path(), "dram", "channels")
	require.NoError(t, err)
	require.Equal(t, "2", v)
	v, err = Get(tmp.Path(), "other", "epoch_period")
	require.NoError(t, err)
	require.Equal(t, "100000", v)
}

func TestOverride_KeepsQuotedValues(t *testing.T) {
	path := writeConfig(t, "hbm.ini", "[dram]\nname = \"quoted\"\nprotocol = HBM\n\n[other]\noutput_prefix = hbm_\n")

	tmp, err := OverrideOutputPrefix(path, "out/hbm")
	require.NoError(t, err)
	defer tmp.Close()

	for _, key := range []string{"name", "protocol"} {
		want, err := Get(path, "dram", key)
		require.NoError(t, err)
		got, err := Get(tmp.Path(), "dram", key)
		require.NoError(t, err)
		require.Equal(t, want, got, "key %s", key)
	}

	data, err := os.ReadFile(tmp.Path())
	require.NoError(t, err)
	require.Contains(t, string(data), `"quoted"`)
}

func TestOverride_CreatesMissingSectionAndKey(t *testing.T) {
	path := writeConfig(t, "bare.ini", "[dram]\nprotocol = HBM\n")

	tmp, err := Override(path, "other", "output_prefix", "out/bare")
	require.NoError(t, err)
	defer tmp.Close()

	prefix, err := OutputPrefix(tmp.Path())
	require.NoError(t, err)
	require.Equal(t, "out/bare", prefix)
}

func TestOverrideIn_Directory(t *testing.T) {
	path := writeConfig(t, "hmc.ini", sample)
	dir := t.TempDir()

	tmp, err := OverrideIn(dir, path, OutputSection, OutputKey, "x")
	require.NoError(t, err)
	defer tmp.Close()

	require.Equal(t, dir, filepath.Dir(tmp.Path()))
}

func TestTemp_CloseRemovesFile(t *testing.T) {
	path := writeConfig(t, "ddr4.ini", sample)

	tmp, err := OverrideOutputPrefix(path, "out/")
	require.NoError(t, err)

	require.NoError(t, tmp.Close())
	_, err = os.Stat(tmp.Path())
	require.True(t, os.IsNotExist(err), "temporary config should be removed")

	// Second close is a no-op.
	require.NoError(t, tmp.Close())
}

func TestOverride_MissingFile(t *testing.T) {
	_, err := OverrideOutputPrefix(filepath.Join(t.TempDir(), "none.ini"), "out/")
	require.Error(t, err)
}
