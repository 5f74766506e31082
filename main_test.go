package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agro-advisor/internal/version"
)

func smallConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agro.yaml")
	body := "yield:\n  forest:\n    trees: 5\n    max_depth: 5\n  synthetic:\n    samples: 120\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	chdir(t, t.TempDir())
	// Flag values outlive a single Execute.
	configPath, verbose = "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	return m, nil
}

func TestCropsCommand(t *testing.T) {
	m, err := execute(t, "crops")
	require.NoError(t, err)
	crops := m["crops"].([]any)
	require.Len(t, crops, 6)
	assert.Equal(t, "пшеница", crops[0].(map[string]any)["id"])
}

func TestForecastCommand(t *testing.T) {
	m, err := execute(t, "forecast", "--config", smallConfig(t),
		"--crop", "wheat", "--soil", "7", "--rain", "100", "--temp", "20", "--area", "10", "--fertilizer")
	require.NoError(t, err)
	assert.Equal(t, "пшеница", m["crop_type"])
	assert.Equal(t, 0.95, m["confidence"])
	assert.Greater(t, m["predicted_yield"].(float64), 0.0)
}

func TestForecastCommandRejectsBounds(t *testing.T) {
	_, err := execute(t, "forecast", "--config", smallConfig(t), "--soil", "42")
	assert.ErrorContains(t, err, "soil_quality")
}

func TestDiagnoseCommand(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 8), 180, uint8(y * 8), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	good := filepath.Join(dir, "leaf.png")
	require.NoError(t, os.WriteFile(good, buf.Bytes(), 0o644))
	bad := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a picture"), 0o644))

	m, err := execute(t, "diagnose", "--config", smallConfig(t), good)
	require.NoError(t, err)
	assert.Contains(t, m, "is_healthy")
	assert.NotEmpty(t, m["recommendations"])

	m, err = execute(t, "diagnose", "--config", smallConfig(t), good, bad)
	require.NoError(t, err)
	summary := m["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["total"])
	assert.Equal(t, 1.0, summary["successful"])
	assert.Equal(t, 1.0, summary["failed"])
}

func TestVersionCommand(t *testing.T) {
	m, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, m, "version")
}

func TestVersionFlag(t *testing.T) {
	chdir(t, t.TempDir())
	configPath, verbose = "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version.String()+"\n", out.String())
}
