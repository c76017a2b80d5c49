package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Align.ToleranceDays)
	assert.Equal(t, "Close Price", cfg.Align.CloseColumn)
	assert.Equal(t, "*.xls*", cfg.Input.Pattern)
	assert.Equal(t, []string{"Income-Quarterly", "Balance-Sheet-Quarterly", "Cash-Flow-Quarterly", "Ratios-Quarterly"}, cfg.Input.Sheets)
	assert.True(t, cfg.Input.DropOldest)
	assert.Equal(t, "02_01_2006", cfg.Output.DateFormat)
	assert.Equal(t, "3mo", cfg.Yahoo.Interval)
	assert.Equal(t, 15*time.Second, cfg.Yahoo.RequestTimeout)
	assert.False(t, cfg.Batch.ContinueOnError)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
input:
  dir: /data/statements
  sheets: Income-Quarterly,Ratios-Quarterly
align:
  tolerance_days: 14
yahoo:
  request_timeout: 3s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("FUNDMERGE_OUTPUT_DIR", "/data/out")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/statements", cfg.Input.Dir)
	assert.Equal(t, []string{"Income-Quarterly", "Ratios-Quarterly"}, cfg.Input.Sheets)
	assert.Equal(t, 14, cfg.Align.ToleranceDays)
	assert.Equal(t, 3*time.Second, cfg.Yahoo.RequestTimeout)
	assert.Equal(t, "/data/out", cfg.Output.Dir)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Align.ToleranceDays = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Align.CloseColumn = " "
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Alerting.Telegram.Enabled = true
	assert.EqualError(t, bad.Validate(), "alerting.telegram.bot_token must be set")

	bad.Alerting.Telegram.BotToken = "token"
	assert.EqualError(t, bad.Validate(), "alerting.telegram.chat_id must be set")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory %s: %v", prev, err)
		}
	})
}
