package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
vectorizer:
  model_path: /models/cc.en.300.bin
  model_url: https://example.com/cc.en.300.bin
language_detection:
  model_path: /models/lid.176.bin
`

func TestLoad(t *testing.T) {
	t.Run("reports every missing field at once", func(t *testing.T) {
		_, err := Load("", "")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequired)
		for _, field := range []string{"vectorizer.model_path", "vectorizer.model_url", "language_detection.model_path"} {
			assert.Contains(t, err.Error(), field)
		}
	})

	t.Run("reads the yaml file over the defaults", func(t *testing.T) {
		cfg, err := Load(writeFile(t, "config.yaml", validYAML+"log:\n  level: debug\nmonitor:\n  interval: 5s\n"), "")

		require.NoError(t, err)
		assert.Equal(t, "/models/cc.en.300.bin", cfg.Vectorizer.ModelPath)
		assert.Equal(t, "/models/lid.176.bin", cfg.LanguageDetection.ModelPath)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
		assert.Equal(t, 1024, cfg.Store.CompactAfter)
		assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
		assert.Equal(t, constants.ServiceKindVectorizer, cfg.Vectorizer.Kind)
		assert.Equal(t, constants.ServiceKindLanguageDetection, cfg.LanguageDetection.Kind)
	})

	t.Run("missing yaml file falls back to defaults", func(t *testing.T) {
		t.Setenv("FASTTEXT_VECTORIZER_MODEL_PATH", "/m/v.bin")
		t.Setenv("FASTTEXT_VECTORIZER_MODEL_URL", "https://example.com/v.bin")
		t.Setenv("FASTTEXT_LANGDETECT_MODEL_PATH", "/m/lid.bin")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "absent.env"))

		require.NoError(t, err)
		assert.Equal(t, "/m/v.bin", cfg.Vectorizer.ModelPath)
	})

	t.Run("environment beats dotenv beats yaml", func(t *testing.T) {
		yamlPath := writeFile(t, "config.yaml", validYAML+"server:\n  http_addr: \":1111\"\n  grpc_addr: \":2222\"\n")
		envPath := writeFile(t, ".env", "FASTTEXT_HTTP_ADDR=:3333\nFASTTEXT_GRPC_ADDR=:4444\n")
		t.Setenv("FASTTEXT_GRPC_ADDR", ":5555")

		cfg, err := Load(yamlPath, envPath)

		require.NoError(t, err)
		assert.Equal(t, ":3333", cfg.Server.HTTPAddr)
		assert.Equal(t, ":5555", cfg.Server.GRPCAddr)
	})

	t.Run("disabled services need no model settings", func(t *testing.T) {
		t.Setenv("FASTTEXT_VECTORIZER_ENABLED", "false")
		t.Setenv("FASTTEXT_LANGDETECT_MODEL_PATH", "/m/lid.bin")

		cfg, err := Load("", "")

		require.NoError(t, err)
		services := cfg.Services()
		require.Len(t, services, 1)
		assert.Equal(t, constants.ServiceKindLanguageDetection, services[0].Kind)
	})

	t.Run("malformed environment values are reported with missing fields", func(t *testing.T) {
		t.Setenv("FASTTEXT_MONITOR_INTERVAL", "often")
		t.Setenv("FASTTEXT_REDIS_DB", "zero")

		_, err := Load("", "")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalid)
		assert.ErrorIs(t, err, ErrRequired)
		assert.Contains(t, err.Error(), "FASTTEXT_MONITOR_INTERVAL")
		assert.Contains(t, err.Error(), "FASTTEXT_REDIS_DB")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "config.yaml", "vectorizer: [\n"), "")

		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "parse config"))
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Vectorizer.ModelPath = "/m/v.bin"
		c.Vectorizer.ModelURL = "https://example.com/v.bin"
		c.LanguageDetection.ModelPath = "/m/lid.bin"
		return c
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("language detection needs no url", func(t *testing.T) {
		c := valid()
		c.LanguageDetection.ModelURL = ""
		assert.NoError(t, c.Validate())
	})

	t.Run("bad checksum", func(t *testing.T) {
		c := valid()
		c.Vectorizer.ModelSHA256 = "abc"
		err := c.Validate()
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "vectorizer.model_sha256")
	})

	t.Run("no services enabled", func(t *testing.T) {
		c := valid()
		c.Vectorizer.Enabled = false
		c.LanguageDetection.Enabled = false
		assert.ErrorIs(t, c.Validate(), ErrInvalid)
	})

	t.Run("duplicate names", func(t *testing.T) {
		c := valid()
		c.LanguageDetection.Name = c.Vectorizer.Name
		assert.ErrorContains(t, c.Validate(), "already used")
	})

	t.Run("shared model path", func(t *testing.T) {
		c := valid()
		c.LanguageDetection.ModelPath = "/m/./v.bin"
		err := c.Validate()
		assert.ErrorIs(t, err, ErrInvalid)
		assert.ErrorContains(t, err, "language_detection.model_path")
	})

	t.Run("shared model path with one service disabled", func(t *testing.T) {
		c := valid()
		c.LanguageDetection.ModelPath = c.Vectorizer.ModelPath
		c.LanguageDetection.Enabled = false
		assert.NoError(t, c.Validate())
	})

	t.Run("downloads are unbounded by default", func(t *testing.T) {
		c := valid()
		assert.Zero(t, c.Download.Timeout)
		assert.Equal(t, time.Minute, c.Download.HeaderTimeout)
	})

	t.Run("negative download timeout", func(t *testing.T) {
		c := valid()
		c.Download.Timeout = -time.Second
		assert.ErrorContains(t, c.Validate(), "download")
	})

	t.Run("unknown log format", func(t *testing.T) {
		c := valid()
		c.Log.Format = "xml"
		assert.ErrorContains(t, c.Validate(), "log.format")
	})
}
