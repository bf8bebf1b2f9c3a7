package arena

import "net/http"

// CoreError is the taxonomy of errors the core returns across HTTP
// boundaries. Every variant carries its own status so handlers can map
// it without a central switch.
type CoreError struct {
	Code    string
	Status  int
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func NewValidationError(msg string) *CoreError {
	return &CoreError{Code: "ValidationError", Status: http.StatusBadRequest, Message: msg}
}

func NewPromptRejectedError(reason string) *CoreError {
	return &CoreError{Code: "PromptRejected", Status: http.StatusUnprocessableEntity, Message: reason}
}

func NewNoEligibleSystemsError(msg string) *CoreError {
	return &CoreError{Code: "NoEligibleSystems", Status: http.StatusConflict, Message: msg}
}

func NewUnreachableError(msg string) *CoreError {
	return &CoreError{Code: "Unreachable", Status: http.StatusBadGateway, Message: msg}
}

func NewBatchTimeoutError(msg string) *CoreError {
	return &CoreError{Code: "BatchTimeout", Status: http.StatusGatewayTimeout, Message: msg}
}

func NewGenerateFailedError(side string) *CoreError {
	return &CoreError{Code: "GenerateFailed", Status: http.StatusBadGateway, Message: "generation failed: " + side}
}

func NewInsufficientListenTimeError(msg string) *CoreError {
	return &CoreError{Code: "InsufficientListenTime", Status: http.StatusUnprocessableEntity, Message: msg}
}

func NewConflictError(msg string) *CoreError {
	return &CoreError{Code: "Conflict", Status: http.StatusConflict, Message: msg}
}

func NewInternalError(msg string) *CoreError {
	return &CoreError{Code: "InternalError", Status: http.StatusInternalServerError, Message: msg}
}

func NewNotFoundError(msg string) *CoreError {
	return &CoreError{Code: "NotFound", Status: http.StatusNotFound, Message: msg}
}

// NewTimeoutError represents a Generator Client call that exceeded its
// deadline without the remote ever answering.
func NewTimeoutError(msg string) *CoreError {
	return &CoreError{Code: "Timeout", Status: http.StatusGatewayTimeout, Message: msg}
}

// NewRejectedError represents a remote 4xx: the prompt or request itself
// was rejected by the system server, never retried.
func NewRejectedError(detail string) *CoreError {
	return &CoreError{Code: "Rejected", Status: http.StatusBadRequest, Message: detail}
}

// NewUnsupportedError represents a remote reporting it cannot serve this
// prompt at all (distinct from a rejection of malformed input).
func NewUnsupportedError(msg string) *CoreError {
	return &CoreError{Code: "Unsupported", Status: http.StatusUnprocessableEntity, Message: msg}
}

// NewRemoteInternalError represents a remote 5xx with a body the client
// could still decode.
func NewRemoteInternalError(detail string) *CoreError {
	return &CoreError{Code: "InternalServerError", Status: http.StatusBadGateway, Message: detail}
}

// AsCoreError unwraps err into a *CoreError, defaulting to InternalError
// if it isn't already one.
func AsCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CoreError); ok {
		return ce
	}
	return NewInternalError(err.Error())
}
