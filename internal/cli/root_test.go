package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "altar", cmd.Use)
	assert.Contains(t, cmd.Long, "vaal altar")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "vaal", "force", "table", "grant"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestVaalCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	vaalCmd, _, err := cmd.Find([]string{"vaal"})
	require.NoError(t, err)

	for _, name := range []string{"foil", "local"} {
		f := vaalCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "false", f.DefValue)
	}
}

// writeConfig writes a config.yaml whose settings file lives in dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "settings:\n  path: " + filepath.Join(dir, "settings.yaml") + "\n" + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInvalidFormat(t *testing.T) {
	dir := writeConfig(t, "")
	_, err := execute(t, "table", "--config", dir, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestForceCommand(t *testing.T) {
	dir := writeConfig(t, "")

	out, err := execute(t, "force", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, "forced outcome: random\n", out)

	out, err = execute(t, "force", "transform", "--config", dir, "--format", "json")
	require.NoError(t, err)
	var got ForceOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "transform", got.ForcedOutcome)

	// persisted across invocations
	out, err = execute(t, "force", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, "forced outcome: transform\n", out)

	_, err = execute(t, "force", "explode", "--config", dir)
	assert.Error(t, err)
}

func TestTableCommand(t *testing.T) {
	dir := writeConfig(t, "")

	out, err := execute(t, "table", "--config", dir, "--format", "json")
	require.NoError(t, err)

	var rows []TableRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)

	sums := map[string]float64{}
	for _, r := range rows {
		sums[string(r.Variant)] += r.Probability
	}
	assert.InDelta(t, 1.0, sums["normal"], 1e-9)
	assert.InDelta(t, 1.0, sums["foil"], 1e-9)

	out, err = execute(t, "table", "--config", dir, "--boost", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "normal:")
	assert.Contains(t, out, "foil:")
}

func TestInvalidConfig(t *testing.T) {
	dir := writeConfig(t, "outcomes:\n  forced_policy: sometimes\n")
	_, err := execute(t, "table", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forced_policy")
}

func TestGrantRequiresSomething(t *testing.T) {
	dir := writeConfig(t, "")
	_, err := execute(t, "grant", "alice", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to grant")
}

func TestVaalRequiresCatalogue(t *testing.T) {
	dir := writeConfig(t, "")
	_, err := execute(t, "vaal", "alice", "headhunter", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalogue.path")
}

func TestRootCommand_ReturnsErrorsSilently(t *testing.T) {
	dir := writeConfig(t, "")
	out, err := execute(t, "force", "explode", "--config", dir)
	require.Error(t, err)
	assert.NotContains(t, out, "Error:", "main logs the error")
}
