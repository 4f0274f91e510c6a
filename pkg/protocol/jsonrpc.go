package protocol

import (
	"encoding/json"
	"errors"

	"github.com/cgast/idemverify/pkg/resource"
)

// JSON-RPC 2.0 message types for serve mode.

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or int; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeUnsupportedKind   = -32000
	CodeMissingArgument   = -32001
	CodeLookupFailure     = -32002
	CodeInspectionFailure = -32003
	CodeNoExpectations    = -32004
	CodeSpecInvalid       = -32005
	CodeRunSkipped        = -32006
	CodeNotFound          = -32007
)

// Method constants for all supported JSON-RPC methods.
const (
	MethodVerify   = "verify"
	MethodValidate = "validate"
	MethodKinds    = "kinds"

	MethodHistoryList = "history.list"
	MethodHistoryShow = "history.show"
	MethodHistoryDiff = "history.diff"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

var codeByTaxonomy = map[resource.Code]int{
	resource.ErrUnsupportedKind:   CodeUnsupportedKind,
	resource.ErrMissingArgument:   CodeMissingArgument,
	resource.ErrLookupFailure:     CodeLookupFailure,
	resource.ErrInspectionFailure: CodeInspectionFailure,
	resource.ErrNoExpectations:    CodeNoExpectations,
}

// ErrorFrom converts err to a JSON-RPC error. Errors carrying a resource
// error code keep it as data; anything else becomes fallback.
func ErrorFrom(err error, fallback int) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if code := resource.CodeOf(err); code != "" {
		if c, ok := codeByTaxonomy[code]; ok {
			return &Error{Code: c, Message: err.Error(), Data: map[string]string{"code": string(code)}}
		}
	}
	return &Error{Code: fallback, Message: err.Error()}
}

// Parameter types.

// VerifyParams holds parameters for "verify".
type VerifyParams struct {
	Specs     []string          `json:"specs"`
	Params    map[string]string `json:"params,omitempty"`
	Facts     []string          `json:"facts,omitempty"`
	Recorded  bool              `json:"recorded,omitempty"`
	Filter    string            `json:"filter,omitempty"`
	Seed      uint64            `json:"seed,omitempty"`
	RunFailed bool              `json:"run_failed,omitempty"`
	RunReason string            `json:"run_reason,omitempty"`
	NoHistory bool              `json:"no_history,omitempty"`
}

// ValidateParams holds parameters for "validate".
type ValidateParams struct {
	Specs  []string          `json:"specs"`
	Params map[string]string `json:"params,omitempty"`
}

// HistoryListParams holds parameters for "history.list".
type HistoryListParams struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryShowParams holds parameters for "history.show".
type HistoryShowParams struct {
	ID string `json:"id"`
}

// HistoryDiffParams holds parameters for "history.diff".
type HistoryDiffParams struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Result types.

// VerifyResult is the result of "verify". Status is "passed", "failed" or
// "skipped"; a failed verification is a result, not an error.
type VerifyResult struct {
	Status   string          `json:"status"`
	ReportID string          `json:"report_id,omitempty"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Outcomes []OutcomeResult `json:"outcomes"`
}

// OutcomeResult is one named outcome in a VerifyResult.
type OutcomeResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// ValidateResult is the result of "validate" for one spec file.
type ValidateResult struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// KindInfo describes a resource kind in the "kinds" response.
type KindInfo struct {
	Kind         string   `json:"kind"`
	Description  string   `json:"description"`
	RequiredArgs []string `json:"required_args,omitempty"`
	Attributes   []string `json:"attributes"`
}
