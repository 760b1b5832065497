package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/infrastructure"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy/taxonomytest"
)

const feed = `{"id":"A","name":"알파전자","segments":{"반도체제조":80,"부동산임대":20}}

{"id":"H","name":"베타테크","segments":{"반도체":30,"소프트웨어":28,"기타":42}}
`

// workspace writes a config, the fixture taxonomy and a feed into a temp
// dir and makes it the working directory.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := `
[ops]
enabled = false

[taxonomy]
version = "` + taxonomytest.Version + `"
dir = "tax"
overrides = "none.yaml"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.BaseConfigFile), []byte(cfg), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "tax"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tax", taxonomytest.Version+".yaml"), []byte(taxonomytest.YAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.jsonl"), []byte(feed), 0o644))

	t.Chdir(dir)
	return dir
}

type batchReport struct {
	Companies int            `json:"companies"`
	Outcomes  map[string]int `json:"outcomes"`
	Edges     map[string]int `json:"edges"`
}

func TestRunBatchDryRun(t *testing.T) {
	workspace(t)

	var out bytes.Buffer
	opts := appOptions{Memory: true, LogOutput: io.Discard}
	err := runBatch(context.Background(), "feed.jsonl", opts, true, strings.NewReader(""), &out)
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Companies)
	assert.Equal(t, 1, report.Outcomes["CLASSIFIED"])
	assert.Equal(t, 1, report.Outcomes["HOLD"])
	assert.Equal(t, 1, report.Edges["INSERTED"])
}

func TestRunBatchReadsStdin(t *testing.T) {
	workspace(t)

	var out bytes.Buffer
	opts := appOptions{Memory: true, LogOutput: io.Discard}
	err := runBatch(context.Background(), "-", opts, false, strings.NewReader(feed), &out)
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Companies)
}

func TestRunBatchAppliesWorkerOverride(t *testing.T) {
	workspace(t)

	var seen int
	opts := appOptions{
		Memory:    true,
		LogOutput: io.Discard,
		Configure: func(cfg *config.Config) error {
			cfg.Pipeline.Workers = 1
			seen = cfg.Pipeline.Workers
			return nil
		},
	}
	err := runBatch(context.Background(), "feed.jsonl", opts, true, nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestRunBatchRejectsMalformedFeed(t *testing.T) {
	workspace(t)

	opts := appOptions{Memory: true, LogOutput: io.Discard}
	err := runBatch(context.Background(), "-", opts, false, strings.NewReader(`{"id":"A"}`), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestRunBatchMissingTaxonomy(t *testing.T) {
	workspace(t)
	t.Setenv(config.EnvTaxonomyVersion, "missing")

	opts := appOptions{Memory: true, LogOutput: io.Discard}
	err := runBatch(context.Background(), "feed.jsonl", opts, false, nil, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestOpsHandler(t *testing.T) {
	cfg, err := config.Parse([]byte("[taxonomy]\nversion = \"v\"\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Finalize())

	infra, err := infrastructure.New(cfg, infrastructure.Options{Memory: true, LogOutput: io.Discard})
	require.NoError(t, err)
	srv := httptest.NewServer(opsHandler(infra))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, _ := get("/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, body := get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "not ready")

	require.NoError(t, infra.Lifecycle.WaitForStartup())
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestHoldFilters(t *testing.T) {
	cfg := &config.Config{Taxonomy: config.TaxonomyConfig{Version: "2025.1"}}

	f := holdFilters(cfg, "", "AMBIGUOUS", "")
	require.NotNil(t, f.TaxonomyVersion)
	assert.Equal(t, "2025.1", *f.TaxonomyVersion)
	require.NotNil(t, f.Reason)
	assert.Equal(t, "AMBIGUOUS", *f.Reason)
	assert.Nil(t, f.RetryStage)

	f = holdFilters(cfg, "2024.2", "", "LLM")
	assert.Equal(t, "2024.2", *f.TaxonomyVersion)
	assert.Nil(t, f.Reason)
	assert.Equal(t, "LLM", *f.RetryStage)
}
