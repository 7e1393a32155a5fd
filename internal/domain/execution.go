package domain

import "context"

// ExecutionResult is the remote executor's output for one run.
type ExecutionResult struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
}

// DisplayKind classifies an execution result for the execution panel.
type DisplayKind string

const (
	DisplayCompileError DisplayKind = "compile_error"
	DisplayRuntimeError DisplayKind = "runtime_error"
	DisplayOutput       DisplayKind = "output"
)

// ExecutionDisplay is what the execution panel shows.
type ExecutionDisplay struct {
	Kind   DisplayKind `json:"kind"`
	Output string      `json:"output"`
}

// Executor runs a single source file remotely.
type Executor interface {
	Run(ctx context.Context, language, source, stdin string) (ExecutionResult, error)
}
