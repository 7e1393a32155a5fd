package piston

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

func newServer(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(config.ExecutionConfig{URL: srv.URL, ConnTimeout: time.Second}, slog.Default()), &hits
}

func TestRunRequestBody(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "python", req["language"])
		assert.Equal(t, "3.10.0", req["version"])
		assert.Equal(t, "5\n", req["stdin"])
		assert.Equal(t, []any{}, req["args"])
		assert.EqualValues(t, 10000, req["compile_timeout"])
		assert.EqualValues(t, 3000, req["run_timeout"])
		files := req["files"].([]any)
		require.Len(t, files, 1)
		f := files[0].(map[string]any)
		assert.Equal(t, "main.py", f["name"])
		assert.Equal(t, "print(input())", f["content"])

		_, _ = w.Write([]byte(`{"run":{"stdout":"5\n","stderr":"","code":0}}`))
	})

	res, err := c.Run(context.Background(), "Python", "print(input())", "5\n")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionResult{Stdout: "5\n"}, res)
}

func TestRunCompileFailure(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"compile":{"stderr":"main.go:3: syntax error","code":1},"run":{"stdout":"","stderr":""}}`))
	})

	res, err := c.Run(context.Background(), "go", "package main\nfunc", "")
	require.NoError(t, err)
	assert.Equal(t, "main.go:3: syntax error", res.CompileOutput)
	assert.Equal(t, domain.DisplayCompileError, Display(res).Kind)
}

func TestRunCompileWarningsWinOverRunOutput(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"compile":{"output":"warning: unused variable x","code":0},"run":{"stdout":"ok\n"}}`))
	})

	res, err := c.Run(context.Background(), "c", "int main(){int x;}", "")
	require.NoError(t, err)
	assert.Equal(t, "warning: unused variable x", res.CompileOutput)
	assert.Equal(t, domain.ExecutionDisplay{Kind: domain.DisplayCompileError, Output: "warning: unused variable x"}, Display(res))
}

func TestRunEmptyCompileOutputIgnored(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"compile":{"stderr":"","output":""},"run":{"stdout":"ok","stderr":""}}`))
	})

	res, err := c.Run(context.Background(), "c", "int main(){}", "")
	require.NoError(t, err)
	assert.Empty(t, res.CompileOutput)
	assert.Equal(t, domain.DisplayOutput, Display(res).Kind)
}

func TestRunUnsupportedLanguageNoNetwork(t *testing.T) {
	c, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.Run(context.Background(), "cobol", "DISPLAY 'HI'.", "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedLanguage)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRunNon2xxCarriesBody(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"runtime is unknown"}`))
	})

	_, err := c.Run(context.Background(), "rust", "fn main(){}", "")
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, `{"message":"runtime is unknown"}`, de.Detail)
	assert.Equal(t, domain.CodeExecutionFailed, domain.ErrorCodeOf(err))
}

func TestRunMalformedResponse(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Run(context.Background(), "ruby", "puts 1", "")
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
}

func TestLookupAliases(t *testing.T) {
	for tag, want := range map[string]string{
		"cpp": "c++", "c++": "c++", "js": "javascript", "ts": "typescript", " Kotlin ": "kotlin",
	} {
		rt, ok := Lookup(tag)
		require.True(t, ok, tag)
		assert.Equal(t, want, rt.Language, tag)
	}
	_, ok := Lookup("html")
	assert.False(t, ok)
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name string
		in   domain.ExecutionResult
		want domain.ExecutionDisplay
	}{
		{"compile wins", domain.ExecutionResult{CompileOutput: "err", Stdout: "x", Stderr: "y"},
			domain.ExecutionDisplay{Kind: domain.DisplayCompileError, Output: "err"}},
		{"stderr only", domain.ExecutionResult{Stderr: "panic"},
			domain.ExecutionDisplay{Kind: domain.DisplayRuntimeError, Output: "panic"}},
		{"stdout and stderr", domain.ExecutionResult{Stdout: "out\n", Stderr: "warn\n"},
			domain.ExecutionDisplay{Kind: domain.DisplayOutput, Output: "out\nwarn\n"}},
		{"stdout only", domain.ExecutionResult{Stdout: "hi"},
			domain.ExecutionDisplay{Kind: domain.DisplayOutput, Output: "hi"}},
		{"nothing", domain.ExecutionResult{},
			domain.ExecutionDisplay{Kind: domain.DisplayOutput, Output: NoOutputText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.in))
		})
	}
}
