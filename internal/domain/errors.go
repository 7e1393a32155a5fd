package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicate        = fmt.Errorf("duplicate")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLimitReached     = fmt.Errorf("limit reached")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrDisabled         = fmt.Errorf("disabled")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrProviderError    = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")

	// Bundle assembly.
	ErrNoComponent      = fmt.Errorf("no component found")
	ErrNoValidComponent = fmt.Errorf("no valid component found")
	ErrNotRenderable    = fmt.Errorf("content cannot be rendered in the sandbox")

	// Canvas coordination.
	ErrResizeUnavailable = fmt.Errorf("canvas width is fixed on narrow layouts")
	ErrNotResizing       = fmt.Errorf("no resize drag in progress")

	// Remote execution.
	ErrUnsupportedLanguage = fmt.Errorf("language not supported for execution")
	ErrExecutionFailed     = fmt.Errorf("remote execution failed")

	// AI webhook.
	ErrWebhookFailed = fmt.Errorf("ai webhook request failed")

	// Conversations and profiles.
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrProfileNotFound      = fmt.Errorf("profile not found")
	ErrEmptyQuestion        = fmt.Errorf("question is empty")
	ErrNotUserMessage       = fmt.Errorf("only user messages can be edited")

	// Gateway / RPC errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")

	// Resilience errors.
	ErrRateLimit     = fmt.Errorf("rate limit exceeded")
	ErrQuotaExceeded = fmt.Errorf("daily message quota exceeded")
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrCircuitOpen   = fmt.Errorf("circuit breaker open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Chat.Send")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "webhook", "execution"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
// Use this with category sentinels (ErrNotFound, ErrTimeout, etc.) so that ErrorCodeOf
// can map the combination of sentinel + subsystem to a specific ErrorCode.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category for clients and monitoring.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeNoComponent         ErrorCode = "NO_COMPONENT"
	CodeNoValidComponent    ErrorCode = "NO_VALID_COMPONENT"
	CodeNotRenderable       ErrorCode = "NOT_RENDERABLE"
	CodeResizeUnavailable   ErrorCode = "RESIZE_UNAVAILABLE"
	CodeNotResizing         ErrorCode = "NOT_RESIZING"
	CodeUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	CodeExecutionFailed     ErrorCode = "EXECUTION_FAILED"
	CodeWebhookFailed       ErrorCode = "WEBHOOK_FAILED"
	CodeConversationNotFnd  ErrorCode = "CONVERSATION_NOT_FOUND"
	CodeMessageNotFound     ErrorCode = "MESSAGE_NOT_FOUND"
	CodeProfileNotFound     ErrorCode = "PROFILE_NOT_FOUND"
	CodeEmptyQuestion       ErrorCode = "EMPTY_QUESTION"
	CodeNotUserMessage      ErrorCode = "NOT_USER_MESSAGE"
	CodeGatewayAuth         ErrorCode = "GATEWAY_AUTH"
	CodeRPCMethodNotFound   ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload   ErrorCode = "RPC_INVALID_PAYLOAD"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeQuotaExceeded       ErrorCode = "QUOTA_EXCEEDED"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeCircuitOpen         ErrorCode = "CIRCUIT_OPEN"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeWebhookTimeout   ErrorCode = "WEBHOOK_TIMEOUT"
	CodeExecutionTimeout ErrorCode = "EXECUTION_TIMEOUT"
	CodeStoreNotFound    ErrorCode = "STORE_NOT_FOUND"
	CodeCanvasInvalid    ErrorCode = "CANVAS_INVALID"

	// Category error codes, used when no subsystem-specific code matches.
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeLimitReached     ErrorCode = "LIMIT_REACHED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeDisabled         ErrorCode = "DISABLED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrDuplicate:        CodeDuplicate,
	ErrTimeout:          CodeTimeout,
	ErrLimitReached:     CodeLimitReached,
	ErrPermissionDenied: CodePermissionDenied,
	ErrDisabled:         CodeDisabled,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderError:    CodeProviderError,

	ErrConfigLoad:           CodeConfigLoad,
	ErrDecryption:           CodeDecryption,
	ErrNoComponent:          CodeNoComponent,
	ErrNoValidComponent:     CodeNoValidComponent,
	ErrNotRenderable:        CodeNotRenderable,
	ErrResizeUnavailable:    CodeResizeUnavailable,
	ErrNotResizing:          CodeNotResizing,
	ErrUnsupportedLanguage:  CodeUnsupportedLanguage,
	ErrExecutionFailed:      CodeExecutionFailed,
	ErrWebhookFailed:        CodeWebhookFailed,
	ErrConversationNotFound: CodeConversationNotFnd,
	ErrMessageNotFound:      CodeMessageNotFound,
	ErrProfileNotFound:      CodeProfileNotFound,
	ErrEmptyQuestion:        CodeEmptyQuestion,
	ErrNotUserMessage:       CodeNotUserMessage,
	ErrGatewayAuthFailed:    CodeGatewayAuth,
	ErrRPCMethodNotFound:    CodeRPCMethodNotFound,
	ErrRPCInvalidPayload:    CodeRPCInvalidPayload,
	ErrRateLimit:            CodeRateLimit,
	ErrQuotaExceeded:        CodeQuotaExceeded,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrCircuitOpen:          CodeCircuitOpen,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"store": CodeStoreNotFound,
	},
	ErrTimeout: {
		"webhook":   CodeWebhookTimeout,
		"execution": CodeExecutionTimeout,
	},
	ErrInvalidInput: {
		"canvas": CodeCanvasInvalid,
	},
	ErrProviderError: {
		"webhook":   CodeWebhookFailed,
		"execution": CodeExecutionFailed,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// For DomainErrors with a SubSystem, it also checks the subSystemCodeMap
// to resolve category sentinels to specific codes.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if de.SubSystem != "" {
			if subsysMap, ok := subSystemCodeMap[de.Err]; ok {
				if code, ok := subsysMap[de.SubSystem]; ok {
					return code
				}
			}
		}
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Specific sentinels first so wrapped category errors do not shadow them.
	for sentinel, code := range errorCodeMap {
		if isCategory(sentinel) {
			continue
		}
		if errors.Is(err, sentinel) {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

func isCategory(err error) bool {
	switch err {
	case ErrNotFound, ErrDuplicate, ErrTimeout, ErrLimitReached,
		ErrPermissionDenied, ErrDisabled, ErrInvalidInput, ErrProviderError:
		return true
	}
	return false
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
