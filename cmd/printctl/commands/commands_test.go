package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/printdispatch/internal/infrastructure/auth"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
)

func TestFormatsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"formats"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute())

	var formats []dto.FormatResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &formats))
	assert.Equal(t, dto.SupportedFormats(), formats)
}

func TestPrintCommand_RequiresSource(t *testing.T) {
	rootCmd.SetArgs([]string{"print"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})

	assert.Error(t, Execute())
}

func TestLoadConfig_KeepsStdoutForOutput(t *testing.T) {
	t.Setenv("PRINTD_LOG_OUTPUT", "stdout")
	verbose = false
	t.Cleanup(func() { verbose = false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "warn", cfg.Log.Level)

	verbose = true
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("PRINTD_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "erp-backend", "--ttl", "10m"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		tokenTTL = 0
	})

	require.NoError(t, Execute())

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &issued))

	cfg, err := loadConfig()
	require.NoError(t, err)
	claims, err := auth.NewJWTService(cfg.JWT).ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "erp-backend", claims.Subject)
}
