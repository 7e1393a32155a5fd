// Package piston runs single source files on a Piston-compatible remote
// execution endpoint.
package piston

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"canvaschat/internal/adapter/httpclient"
	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
	"canvaschat/internal/infra/tracer"
)

const (
	subsystem = "execution"
	opRun     = "Piston.Run"

	compileTimeoutMs = 10000
	runTimeoutMs     = 3000
)

// NoOutputText is shown for a successful run that printed nothing.
const NoOutputText = "Program ran successfully with no output."

// Runtime is one entry of the language compatibility table.
type Runtime struct {
	Language string // remote runtime name
	Version  string
	FileName string
}

// Languages maps accepted language tags to the runtime versions the
// endpoint is known to serve.
var Languages = map[string]Runtime{
	"python":     {"python", "3.10.0", "main.py"},
	"cpp":        {"c++", "10.2.0", "main.cpp"},
	"c++":        {"c++", "10.2.0", "main.cpp"},
	"c":          {"c", "10.2.0", "main.c"},
	"java":       {"java", "15.0.2", "Main.java"},
	"javascript": {"javascript", "18.15.0", "main.js"},
	"js":         {"javascript", "18.15.0", "main.js"},
	"typescript": {"typescript", "5.0.3", "main.ts"},
	"ts":         {"typescript", "5.0.3", "main.ts"},
	"php":        {"php", "8.2.3", "main.php"},
	"ruby":       {"ruby", "3.0.1", "main.rb"},
	"go":         {"go", "1.16.2", "main.go"},
	"rust":       {"rust", "1.68.2", "main.rs"},
	"csharp":     {"csharp", "6.12.0", "main.cs"},
	"swift":      {"swift", "5.3.3", "main.swift"},
	"kotlin":     {"kotlin", "1.8.20", "main.kt"},
}

// Lookup returns the runtime for a language tag, case-insensitively.
func Lookup(language string) (Runtime, bool) {
	rt, ok := Languages[strings.ToLower(strings.TrimSpace(language))]
	return rt, ok
}

// Client talks to the execution endpoint.
type Client struct {
	url     string
	http    *http.Client
	breaker *httpclient.Breaker[domain.ExecutionResult]
	logger  *slog.Logger
}

// New creates a client from configuration. Requests carry no response
// timeout of their own: the remote compile and run limits bound them.
func New(cfg config.ExecutionConfig, logger *slog.Logger) *Client {
	return NewWithHTTPClient(cfg, httpclient.NewClient(cfg.ConnTimeout, 0, cfg.Pool), logger)
}

// NewWithHTTPClient creates a client over an existing *http.Client.
func NewWithHTTPClient(cfg config.ExecutionConfig, hc *http.Client, logger *slog.Logger) *Client {
	url := cfg.URL
	if url == "" {
		url = config.DefaultExecutionURL
	}
	return &Client{
		url:     url,
		http:    hc,
		breaker: httpclient.NewBreaker[domain.ExecutionResult]("execution", cfg.CircuitBreaker, httpclient.ServerFault, logger),
		logger:  logger,
	}
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string { return c.breaker.State().String() }

type file struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language       string   `json:"language"`
	Version        string   `json:"version"`
	Files          []file   `json:"files"`
	Stdin          string   `json:"stdin"`
	Args           []string `json:"args"`
	CompileTimeout int      `json:"compile_timeout"`
	RunTimeout     int      `json:"run_timeout"`
}

type stage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

type executeResponse struct {
	Run     stage  `json:"run"`
	Compile *stage `json:"compile"`
	Message string `json:"message"`
}

// Run executes source once. Unsupported languages fail before any network
// call; a non-2xx answer fails with the response body as detail.
func (c *Client) Run(ctx context.Context, language, source, stdin string) (domain.ExecutionResult, error) {
	rt, ok := Lookup(language)
	if !ok {
		return domain.ExecutionResult{}, domain.NewSubSystemError(subsystem, opRun, domain.ErrUnsupportedLanguage, language)
	}

	var result domain.ExecutionResult
	err := tracer.Do(ctx, "execution.run", func(ctx context.Context) error {
		var err error
		result, err = c.breaker.Execute(func() (domain.ExecutionResult, error) {
			return c.run(ctx, rt, source, stdin)
		})
		return err
	}, tracer.StringAttr("execution.language", rt.Language), tracer.IntAttr("execution.source_len", len(source)))
	if err != nil {
		c.logger.Warn("remote execution failed", "language", rt.Language, "error", err)
		var de *domain.DomainError
		if errors.As(err, &de) {
			return domain.ExecutionResult{}, de
		}
		return domain.ExecutionResult{}, httpclient.TransportError(subsystem, opRun, err, domain.ErrExecutionFailed)
	}
	c.logger.Debug("remote execution completed", "language", rt.Language,
		"stdout_len", len(result.Stdout), "stderr_len", len(result.Stderr))
	return result, nil
}

func (c *Client) run(ctx context.Context, rt Runtime, source, stdin string) (domain.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{
		Language:       rt.Language,
		Version:        rt.Version,
		Files:          []file{{Name: rt.FileName, Content: source}},
		Stdin:          stdin,
		Args:           []string{},
		CompileTimeout: compileTimeoutMs,
		RunTimeout:     runTimeoutMs,
	})
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := httpclient.PostJSON(ctx, c.http, c.url, body, nil)
	if err != nil {
		return domain.ExecutionResult{}, httpclient.TransportError(subsystem, opRun, err, domain.ErrExecutionFailed)
	}
	if !resp.OK() {
		return domain.ExecutionResult{}, httpclient.WithStatus(resp.StatusCode,
			domain.NewSubSystemError(subsystem, opRun, domain.ErrExecutionFailed, string(resp.Body)))
	}

	var out executeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return domain.ExecutionResult{}, domain.NewSubSystemError(subsystem, opRun, domain.ErrExecutionFailed,
			"decode response: "+err.Error())
	}
	result := domain.ExecutionResult{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}
	// Any compile output is a diagnostic, whatever the exit code.
	if out.Compile != nil {
		result.CompileOutput = firstNonEmpty(out.Compile.Output, out.Compile.Stderr)
	}
	return result, nil
}

// Display classifies a result for the execution panel: compile output wins,
// stderr alone is a runtime error, anything else is printed output.
func Display(r domain.ExecutionResult) domain.ExecutionDisplay {
	switch {
	case r.CompileOutput != "":
		return domain.ExecutionDisplay{Kind: domain.DisplayCompileError, Output: r.CompileOutput}
	case r.Stderr != "" && r.Stdout == "":
		return domain.ExecutionDisplay{Kind: domain.DisplayRuntimeError, Output: r.Stderr}
	case r.Stdout == "" && r.Stderr == "":
		return domain.ExecutionDisplay{Kind: domain.DisplayOutput, Output: NoOutputText}
	}
	out := r.Stdout
	if r.Stderr != "" {
		out += r.Stderr
	}
	return domain.ExecutionDisplay{Kind: domain.DisplayOutput, Output: out}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ domain.Executor = (*Client)(nil)
