package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/api"
	"github.com/lemonberrylabs/loxwalk/pkg/service"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

// stepLimit is the per-run statement budget used by every test server.
const stepLimit = 10000

// runResponse mirrors the JSON shape of a recorded run.
type runResponse struct {
	ID             string       `json:"id"`
	ScriptID       string       `json:"scriptId"`
	ScriptRevision int          `json:"scriptRevision"`
	State          string       `json:"state"`
	Output         string       `json:"output"`
	Diagnostics    []diagnostic `json:"diagnostics"`
}

type diagnostic struct {
	Kind    string `json:"kind" yaml:"kind"`
	Line    int    `json:"line" yaml:"line"`
	Message string `json:"message" yaml:"message"`
}

func newServer(t *testing.T) *api.Server {
	t.Helper()
	svc := service.New(store.New(), service.Limits{
		Timeout:        5 * time.Second,
		MaxSourceBytes: 64 << 10,
		MaxSteps:       stepLimit,
	}, zap.NewNop())
	return api.New(svc, zap.NewNop())
}

// doJSON sends a request with an optional JSON body and decodes the response
// into out when it is non-nil.
func doJSON(t *testing.T, srv *api.Server, method, path string, body, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp.StatusCode
}

func runSource(t *testing.T, srv *api.Server, source string) runResponse {
	t.Helper()
	var run runResponse
	status := doJSON(t, srv, http.MethodPost, "/v1/run", map[string]string{"source": source}, &run)
	require.Equal(t, http.StatusOK, status)
	return run
}
