package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/engine"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	root := NewRoot()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const sign = `{"site":{"wind_speed_mph":115},"cabinets":[{"width_ft":14,"height_ft":8,"weight_per_area_psf":10}],"pole_height_ft":25}`

func TestLoadsCommandPrintsEnvelope(t *testing.T) {
	out, err := execute(t, sign, "loads")
	require.NoError(t, err)

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Len(t, env.ContentHash, 64)
	assert.Equal(t, "1.2.0", env.SolverVersions["loads.derive"])
}

func TestCommandIsRepeatable(t *testing.T) {
	a, err := execute(t, sign, "loads", "--compact")
	require.NoError(t, err)
	b, err := execute(t, sign, "loads", "--compact")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, strings.Count(a, "\n"))
}

func TestFailedCalculationPrintsFailureEnvelope(t *testing.T) {
	out, err := execute(t, `{"diameter_ft":3,"moment_kipft":10,"num_poles":1}`, "footing")
	require.ErrorIs(t, err, errFailed)

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, 0.0, env.Confidence)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "soil_bearing_psf", env.Errors[0].Path)
}

func TestInputFileAndPackFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sign.json")
	require.NoError(t, os.WriteFile(path, []byte(sign), 0o600))

	out, err := execute(t, "", "loads", "-i", path, "--pack", "asce7-16-sign@1.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, `"asce7-16-sign": "1.0.0"`)

	_, err = execute(t, "", "loads", "-i", path, "--pack", "asce7-16-sign@7.0.0")
	assert.Error(t, err)
}

func TestUnpinnedRunUsesDefaultPack(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "internal", "calc", "constants", "packs", "asce7-16-sign-1.0.0.yaml"))
	require.NoError(t, err)
	dir := t.TempDir()
	newer := strings.Replace(string(raw), "version: 1.0.0", "version: 1.1.0", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "newer.yaml"), []byte(newer), 0o600))

	out, err := execute(t, sign, "loads", "--constants-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"`+constants.DefaultName+`": "`+constants.DefaultVersion+`"`)

	flag := NewRoot().PersistentFlags().Lookup("pack")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, constants.DefaultName+"@"+constants.DefaultVersion)
}

func TestVersionsCommand(t *testing.T) {
	out, err := execute(t, "", "versions")
	require.NoError(t, err)
	var v engine.Versions
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "builtin-structural", v.Catalog.Name)
}

func TestReportCommandWritesPDF(t *testing.T) {
	env, err := execute(t, sign, "loads")
	require.NoError(t, err)

	pdf := filepath.Join(t.TempDir(), "sheet.pdf")
	out, err := execute(t, env, "report", "-o", pdf, "--project", "Main St", "--date", "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	b, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}
