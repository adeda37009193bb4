package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	grpcapi "github.com/kennethnrk/fasttext-services/internal/api/grpc"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/fasttext"
	"github.com/kennethnrk/fasttext-services/internal/fasttext/fasttexttest"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/provision"
	"github.com/kennethnrk/fasttext-services/internal/service"
)

type lidLoader struct{}

func (lidLoader) Load(context.Context, provision.ModelReference) (*fasttext.Model, provision.Artifact, error) {
	return fasttexttest.LanguageModel(), provision.Artifact{ID: "lid"}, nil
}

func startHost(t *testing.T) string {
	t.Helper()
	h := host.New()
	_, err := h.Register(service.NewLanguageDetector(lidLoader{}), config.ServiceConfig{Name: "language_detection"})
	require.NoError(t, err)
	require.NoError(t, h.LoadAll(context.Background()))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpcapi.NewServer(h, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestRunPrintsResults(t *testing.T) {
	addr := startHost(t)
	var out bytes.Buffer

	err := run(options{addr: addr, service: "language_detection", input: "-", timeout: 5 * time.Second},
		strings.NewReader(`[{"Id":"x","Text":"hola mundo"}]`), &out)

	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0]["Id"])
	assert.Equal(t, "es", results[0]["Label"])
}

func TestRunStatus(t *testing.T) {
	addr := startHost(t)
	var out bytes.Buffer

	err := run(options{addr: addr, timeout: 5 * time.Second, status: true}, nil, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), `"ready": true`)
}

func TestReadDatasetFromStdin(t *testing.T) {
	d, err := readDataset("-", strings.NewReader(`[{"Id":1,"Text":"bonjour"}]`))

	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Text"}, d.Columns())
	assert.Equal(t, 1, d.Len())
}

func TestReadDatasetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"columns":["Text"],"data":[["a"],["b"]]}`), 0o644))

	d, err := readDataset(path, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestReadDatasetErrors(t *testing.T) {
	_, err := readDataset(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = readDataset("-", strings.NewReader(`"just text"`))
	assert.ErrorContains(t, err, "decode input")
}
