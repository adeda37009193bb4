package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// envSource resolves FASTTEXT_* variables. The process environment wins over
// values read from the dotenv file.
type envSource struct {
	dotenv map[string]string
	errs   []error
}

func (e *envSource) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

func (e *envSource) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envSource) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w: %q", key, ErrInvalid, v))
		return
	}
	*dst = b
}

func (e *envSource) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w: %q", key, ErrInvalid, v))
		return
	}
	*dst = n
}

func (e *envSource) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w: %q", key, ErrInvalid, v))
		return
	}
	*dst = d
}

func (e *envSource) apply(c *Config) {
	e.str("FASTTEXT_GRPC_ADDR", &c.Server.GRPCAddr)
	e.str("FASTTEXT_HTTP_ADDR", &c.Server.HTTPAddr)
	e.duration("FASTTEXT_READ_TIMEOUT", &c.Server.ReadTimeout)
	e.duration("FASTTEXT_WRITE_TIMEOUT", &c.Server.WriteTimeout)
	e.duration("FASTTEXT_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	e.str("FASTTEXT_LOG_LEVEL", &c.Log.Level)
	e.str("FASTTEXT_LOG_FORMAT", &c.Log.Format)

	e.str("FASTTEXT_DATA_DIR", &c.Store.DataDir)
	e.integer("FASTTEXT_STORE_COMPACT_AFTER", &c.Store.CompactAfter)

	e.str("FASTTEXT_REDIS_ADDR", &c.Cache.RedisAddr)
	e.str("FASTTEXT_REDIS_PASSWORD", &c.Cache.RedisPassword)
	e.integer("FASTTEXT_REDIS_DB", &c.Cache.RedisDB)
	e.duration("FASTTEXT_CACHE_TTL", &c.Cache.TTL)

	e.duration("FASTTEXT_DOWNLOAD_TIMEOUT", &c.Download.Timeout)
	e.duration("FASTTEXT_DOWNLOAD_HEADER_TIMEOUT", &c.Download.HeaderTimeout)
	e.duration("FASTTEXT_MONITOR_INTERVAL", &c.Monitor.Interval)

	e.boolean("FASTTEXT_VECTORIZER_ENABLED", &c.Vectorizer.Enabled)
	e.str("FASTTEXT_VECTORIZER_NAME", &c.Vectorizer.Name)
	e.str("FASTTEXT_VECTORIZER_MODEL_PATH", &c.Vectorizer.ModelPath)
	e.str("FASTTEXT_VECTORIZER_MODEL_URL", &c.Vectorizer.ModelURL)
	e.str("FASTTEXT_VECTORIZER_MODEL_SHA256", &c.Vectorizer.ModelSHA256)

	e.boolean("FASTTEXT_LANGDETECT_ENABLED", &c.LanguageDetection.Enabled)
	e.str("FASTTEXT_LANGDETECT_NAME", &c.LanguageDetection.Name)
	e.str("FASTTEXT_LANGDETECT_MODEL_PATH", &c.LanguageDetection.ModelPath)
	e.str("FASTTEXT_LANGDETECT_MODEL_SHA256", &c.LanguageDetection.ModelSHA256)
}
