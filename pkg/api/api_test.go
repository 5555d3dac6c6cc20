package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/service"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := service.New(store.New(), service.Limits{
		Timeout:        time.Second,
		MaxSourceBytes: 1024,
		MaxSteps:       100_000,
	}, zap.NewNop())
	return New(svc, zap.NewNop())
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorStatus(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	return e["status"].(string)
}

func TestHealth(t *testing.T) {
	code, body := do(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestProbes(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyFailsWithClosedStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "lox.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	srv := New(service.New(s, service.Limits{Timeout: time.Second}, zap.NewNop()), zap.NewNop())

	code, _ := do(t, srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)
	code, _ := do(t, srv, http.MethodPost, "/v1/run", map[string]string{"source": "print 1;"})
	require.Equal(t, http.StatusOK, code)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lox_runs_total{state="SUCCEEDED"}`)
}

func TestRunSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
		state  string
		output string
	}{
		{"succeeds", "var a = 1; var b = 2; print a + b;", "SUCCEEDED", "3\n"},
		{"runtime error", `print "a" + 1;`, "FAILED", ""},
		{"static error", "print ;", "REJECTED", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			code, run := do(t, srv, http.MethodPost, "/v1/run", map[string]string{"source": tt.source})
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.state, run["state"])
			assert.Equal(t, tt.output, run["output"])

			code, fetched := do(t, srv, http.MethodGet, "/v1/runs/"+run["id"].(string), nil)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, run["id"], fetched["id"])
		})
	}
}

func TestRunSourceDiagnostics(t *testing.T) {
	_, run := do(t, newTestServer(t), http.MethodPost, "/v1/run", map[string]string{"source": "print 1;\nprint x;"})
	diags := run["diagnostics"].([]interface{})
	require.Len(t, diags, 1)
	d := diags[0].(map[string]interface{})
	assert.Equal(t, "runtime", d["kind"])
	assert.Equal(t, float64(2), d["line"])
	assert.Equal(t, "Undefined variable 'x'.", d["message"])
}

func TestRunSourceErrors(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/run", map[string]string{"source": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", errorStatus(t, body))

	code, body = do(t, srv, http.MethodPost, "/v1/run", map[string]string{"source": strings.Repeat("print 1;", 200)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "RESOURCE_EXHAUSTED", errorStatus(t, body))

	code, body = do(t, srv, http.MethodGet, "/v1/runs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorStatus(t, body))
}

func TestScriptLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, sc := do(t, srv, http.MethodPost, "/v1/scripts", map[string]string{
		"name":   "counter",
		"source": "var n = 0; while (n < 3) { n = n + 1; print n; }",
	})
	require.Equal(t, http.StatusOK, code)
	id := sc["id"].(string)
	assert.Equal(t, "counter", sc["name"])

	code, _ = do(t, srv, http.MethodPost, "/v1/scripts", map[string]string{"name": "counter", "source": "print 1;"})
	assert.Equal(t, http.StatusConflict, code)

	code, list := do(t, srv, http.MethodGet, "/v1/scripts", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, list["scripts"], 1)

	code, got := do(t, srv, http.MethodGet, "/v1/scripts/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, sc["source"], got["source"])

	code, run := do(t, srv, http.MethodPost, "/v1/scripts/"+id+"/runs", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1\n2\n3\n", run["output"])
	assert.Equal(t, id, run["scriptId"])

	code, updated := do(t, srv, http.MethodPatch, "/v1/scripts/"+id, map[string]string{"source": `print "v2";`})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), updated["revision"])

	_, run = do(t, srv, http.MethodPost, "/v1/scripts/"+id+"/runs", nil)
	assert.Equal(t, "v2\n", run["output"])

	code, runs := do(t, srv, http.MethodGet, "/v1/scripts/"+id+"/runs", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, runs["runs"], 2)

	code, deleted := do(t, srv, http.MethodDelete, "/v1/scripts/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, deleted["deleted"])

	code, body := do(t, srv, http.MethodGet, "/v1/scripts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorStatus(t, body))
}

func TestCreateScriptValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad name", map[string]string{"name": "Bad Name", "source": "print 1;"}},
		{"missing source", map[string]string{"name": "empty"}},
		{"syntax error", map[string]string{"name": "broken", "source": "print ;"}},
		{"resolution error", map[string]string{"name": "selfref", "source": "{ var a = a; }"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, newTestServer(t), http.MethodPost, "/v1/scripts", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "INVALID_ARGUMENT", errorStatus(t, body))
		})
	}
}

func TestSyntaxErrorDetails(t *testing.T) {
	_, body := do(t, newTestServer(t), http.MethodPost, "/v1/scripts", map[string]string{
		"name":   "broken",
		"source": "print ;\nvar = 1;",
	})
	e := body["error"].(map[string]interface{})
	details := e["details"].([]interface{})
	require.Len(t, details, 2)
	assert.Contains(t, e["message"], "[line 1] Error at ';': Expect expression.")
}

func TestUpdateScriptErrors(t *testing.T) {
	srv := newTestServer(t)
	_, sc := do(t, srv, http.MethodPost, "/v1/scripts", map[string]string{"name": "a", "source": "print 1;"})
	id := sc["id"].(string)

	code, _ := do(t, srv, http.MethodPatch, "/v1/scripts/"+id, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPatch, "/v1/scripts/"+id, map[string]string{"source": "print"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPatch, "/v1/scripts/missing", map[string]string{"name": "b"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, srv, http.MethodGet, "/v1/scripts/missing/runs", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, srv, http.MethodPost, "/v1/scripts/missing/runs", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"hello.lox":    `print "hello";`,
		"Upper.lox":    "print 1;",
		"broken.lox":   "print ;",
		"notes.txt":    "not lox",
		"bad name.lox": "print 2;",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	srv := newTestServer(t)
	loaded, err := srv.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	hello, err := srv.store.GetScriptByName("hello")
	require.NoError(t, err)
	_, err = srv.store.GetScriptByName("upper")
	require.NoError(t, err)

	// Reloading updates existing scripts instead of failing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.lox"), []byte(`print "again";`), 0o644))
	loaded, err = srv.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	reloaded, err := srv.store.GetScript(hello.ID)
	require.NoError(t, err)
	assert.Equal(t, `print "again";`, reloaded.Source)

	_, err = srv.LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
