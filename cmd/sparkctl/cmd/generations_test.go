package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerateCmd() *cobra.Command {
	c := &cobra.Command{Use: "generate"}
	c.Flags().AddFlagSet(generateCmd.Flags())
	return c
}

func TestBuildParamsOnlyChangedFlags(t *testing.T) {
	c := newGenerateCmd()
	require.NoError(t, c.ParseFlags([]string{"--aspect-ratio", "16:9", "--output-count", "3", "--seed", "0"}))

	raw, err := buildParams(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"aspectRatio":"16:9","outputCount":3,"seed":0}`, string(raw))
}

func TestBuildParamsNone(t *testing.T) {
	raw, err := buildParams(&cobra.Command{Use: "generate"})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefghij", 5))
}
