package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Extract.DateKeywords = []string{"posted"}
	cfg.Server.Addr = ":9090"

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 20, cfg.Extract.MaxHeaderScanRows)
	assert.Equal(t, 2, cfg.Extract.MinHeaderMatches)
	assert.Contains(t, cfg.Extract.HeaderKeywords, "payee")
	assert.Equal(t, "gemini-2.5-flash", cfg.Generative.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generative.APIKeyEnv)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "import", cfg.Inbox.Dir)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, Default())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "max_header_scan_rows: 20")
	assert.Contains(t, contents, "api_key_env: GEMINI_API_KEY")
	assert.Contains(t, contents, "addr: :8080")
	assert.Contains(t, contents, "level: info")
}

func TestBuildDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestBuildLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"log:\n  level: debug\nserver:\n  addr: \":7000\"\ngenerative:\n  model: file-model\n"), 0o644))

	t.Setenv("RECON_SERVER_ADDR", ":7100")
	t.Setenv("RECON_EXTRACT_DATE_KEYWORDS", "posted,booked")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	flags.String("addr", "", "")
	require.NoError(t, flags.Parse([]string{"--model", "flag-model"}))

	cfg, err := Build(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, "flag-model", cfg.Generative.Model)
	assert.Equal(t, []string{"posted", "booked"}, cfg.Extract.DateKeywords)
	assert.Equal(t, "import", cfg.Inbox.Dir)
}

func TestBuildPicksUpWorkingDirFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("inbox:\n  dir: drop\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, "drop", cfg.Inbox.Dir)
}

func TestBuildBadFile(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestExtractConfig(t *testing.T) {
	cfg := Default()
	cfg.Extract.AmountKeywords = []string{"sum"}
	fixed := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	ec := cfg.ExtractConfig(func() time.Time { return fixed })
	assert.Equal(t, []string{"sum"}, ec.AmountKeywords)
	assert.Equal(t, 20, ec.MaxHeaderScanRows)
	assert.Equal(t, fixed, ec.Now())
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Generative.APIKeyEnv = "RECON_TEST_KEY"
	t.Setenv("RECON_TEST_KEY", "secret")
	assert.Equal(t, "secret", cfg.APIKey())

	cfg.Generative.APIKeyEnv = ""
	assert.Empty(t, cfg.APIKey())
}
