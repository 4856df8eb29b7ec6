package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType is the kernel's error taxonomy, covering every failure mode a
// manifest scan, dependency resolution, load, start, stop, or capability
// call can produce.
type ErrorType string

const (
	// ErrorTypeManifestMalformed covers a config.json that failed to parse
	// or validate.
	ErrorTypeManifestMalformed ErrorType = "manifest_malformed"

	// ErrorTypeDepCycle covers a dependency graph containing a cycle.
	ErrorTypeDepCycle ErrorType = "dep_cycle"

	// ErrorTypeDepMissing covers a requirement no scanned plugin satisfies.
	ErrorTypeDepMissing ErrorType = "dep_missing"

	// ErrorTypeAuditBlocked covers an entry file an audit hook rejected.
	ErrorTypeAuditBlocked ErrorType = "audit_blocked"

	// ErrorTypeLoadFailed covers a build or plugin.Open failure.
	ErrorTypeLoadFailed ErrorType = "load_failed"

	// ErrorTypeStartTimeout covers Instance.Start exceeding its deadline.
	ErrorTypeStartTimeout ErrorType = "start_timeout"

	// ErrorTypeStartFailed covers Instance.Start returning an error.
	ErrorTypeStartFailed ErrorType = "start_failed"

	// ErrorTypeStopTimeout covers Instance.Stop exceeding its deadline.
	ErrorTypeStopTimeout ErrorType = "stop_timeout"

	// ErrorTypeStopRaised covers Instance.Stop returning an error.
	ErrorTypeStopRaised ErrorType = "stop_raised"

	// ErrorTypeKernelGone covers a Facade call made after kernel shutdown.
	ErrorTypeKernelGone ErrorType = "kernel_gone"

	// ErrorTypeNotActive covers a Facade call made by a plugin whose stop
	// signal is already set.
	ErrorTypeNotActive ErrorType = "not_active"

	// ErrorTypeCallbackError covers an event handler panicking or
	// returning an error during dispatch.
	ErrorTypeCallbackError ErrorType = "callback_error"

	// ErrorTypeInternal covers anything that does not fit the above.
	ErrorTypeInternal ErrorType = "internal"
)

// AppError is a structured kernel error, carrying enough context for both
// log lines and the introspection HTTP API's JSON responses.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.InnerError != nil {
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3) // Skip this method and the caller
	return e
}

// Is checks if this error is of a specific type
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    err.Error(),
		InnerError: err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	return FromError(err).WithMessage(message)
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// NewManifestMalformed reports a config.json that failed to parse or
// validate for the named plugin.
func NewManifestMalformed(plugin string, reason string) *AppError {
	return New(ErrorTypeManifestMalformed, fmt.Sprintf("plugin %q: malformed manifest: %s", plugin, reason)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusUnprocessableEntity)
}

// NewDepCycle reports a dependency cycle found during resolution. cycle is
// the ordered list of plugin names forming the cycle.
func NewDepCycle(cycle []string) *AppError {
	return New(ErrorTypeDepCycle, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> "))).
		WithDetail("cycle", cycle).
		WithHTTPStatus(http.StatusUnprocessableEntity)
}

// NewDepMissing reports a requirement no scanned plugin satisfies.
func NewDepMissing(plugin string, requirement string) *AppError {
	return New(ErrorTypeDepMissing, fmt.Sprintf("plugin %q: unsatisfied requirement %q", plugin, requirement)).
		WithDetail("plugin", plugin).
		WithDetail("requirement", requirement).
		WithHTTPStatus(http.StatusUnprocessableEntity)
}

// NewAuditBlocked reports an entry file an audit hook rejected.
func NewAuditBlocked(plugin string, reason string) *AppError {
	return New(ErrorTypeAuditBlocked, fmt.Sprintf("plugin %q: blocked by audit hook: %s", plugin, reason)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusForbidden)
}

// NewLoadFailed reports a build or plugin.Open failure.
func NewLoadFailed(plugin string, err error) *AppError {
	return WrapWithType(err, ErrorTypeLoadFailed, fmt.Sprintf("plugin %q: load failed", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewStartTimeout reports Instance.Start exceeding its deadline.
func NewStartTimeout(plugin string) *AppError {
	return New(ErrorTypeStartTimeout, fmt.Sprintf("plugin %q: start timed out", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusGatewayTimeout)
}

// NewStartFailed reports Instance.Start returning an error.
func NewStartFailed(plugin string, err error) *AppError {
	return WrapWithType(err, ErrorTypeStartFailed, fmt.Sprintf("plugin %q: start failed", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewStopTimeout reports Instance.Stop exceeding its deadline.
func NewStopTimeout(plugin string) *AppError {
	return New(ErrorTypeStopTimeout, fmt.Sprintf("plugin %q: stop timed out", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusGatewayTimeout)
}

// NewStopRaised reports Instance.Stop returning an error.
func NewStopRaised(plugin string, err error) *AppError {
	return WrapWithType(err, ErrorTypeStopRaised, fmt.Sprintf("plugin %q: stop raised an error", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewKernelGone reports a Facade call made after kernel shutdown.
func NewKernelGone() *AppError {
	return New(ErrorTypeKernelGone, "kernel is shut down").WithHTTPStatus(http.StatusGone)
}

// NewNotActive reports a Facade call made by a plugin whose stop signal is
// already set.
func NewNotActive(plugin string) *AppError {
	return New(ErrorTypeNotActive, fmt.Sprintf("plugin %q is not active", plugin)).
		WithDetail("plugin", plugin).
		WithHTTPStatus(http.StatusConflict)
}

// NewCallbackError reports an event handler panicking or returning an error
// during dispatch.
func NewCallbackError(event string, owner string, err error) *AppError {
	return WrapWithType(err, ErrorTypeCallbackError, fmt.Sprintf("handler for %q (owner %q) failed", event, owner)).
		WithDetail("event", event).
		WithDetail("owner", owner).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewInternal wraps an unclassified internal error.
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}

// Error codes for specific scenarios, mirrored 1:1 with ErrorType so the
// introspection API and log lines carry a stable machine-readable code.
const (
	CodeManifestMalformed = "MANIFEST_MALFORMED"
	CodeDepCycle          = "DEP_CYCLE"
	CodeDepMissing        = "DEP_MISSING"
	CodeAuditBlocked      = "AUDIT_BLOCKED"
	CodeLoadFailed        = "LOAD_FAILED"
	CodeStartTimeout      = "START_TIMEOUT"
	CodeStartFailed       = "START_FAILED"
	CodeStopTimeout       = "STOP_TIMEOUT"
	CodeStopRaised        = "STOP_RAISED"
	CodeKernelGone        = "KERNEL_GONE"
	CodeNotActive         = "NOT_ACTIVE"
	CodeCallbackError     = "CALLBACK_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorRegistry manages error definitions
type ErrorRegistry struct {
	errors map[string]*AppError
}

// NewErrorRegistry creates a new error registry
func NewErrorRegistry() *ErrorRegistry {
	return &ErrorRegistry{
		errors: make(map[string]*AppError),
	}
}

// Register registers an error template
func (r *ErrorRegistry) Register(code string, err *AppError) {
	r.errors[code] = err
}

// Get retrieves a registered error template
func (r *ErrorRegistry) Get(code string) *AppError {
	if err, ok := r.errors[code]; ok {
		return err
	}
	return nil
}

// Create creates a new error from a registered template
func (r *ErrorRegistry) Create(code string, details map[string]interface{}) *AppError {
	if template := r.Get(code); template != nil {
		err := &AppError{
			Type:       template.Type,
			Code:       code,
			Message:    template.Message,
			Details:    make(map[string]interface{}),
			HTTPStatus: template.HTTPStatus,
		}
		for k, v := range template.Details {
			err.Details[k] = v
		}
		for k, v := range details {
			err.Details[k] = v
		}
		return err
	}
	return New(ErrorTypeInternal, "unknown error code").WithDetail("code", code)
}

// DefaultErrorRegistry creates a default error registry covering the
// kernel's taxonomy, for use by the introspection API's error renderer.
func DefaultErrorRegistry() *ErrorRegistry {
	registry := NewErrorRegistry()

	registry.Register(CodeManifestMalformed, NewManifestMalformed("", "invalid"))
	registry.Register(CodeDepCycle, NewDepCycle(nil))
	registry.Register(CodeDepMissing, NewDepMissing("", ""))
	registry.Register(CodeAuditBlocked, NewAuditBlocked("", ""))
	registry.Register(CodeLoadFailed, NewLoadFailed("", errors.New("load failed")))
	registry.Register(CodeStartTimeout, NewStartTimeout(""))
	registry.Register(CodeStartFailed, NewStartFailed("", errors.New("start failed")))
	registry.Register(CodeStopTimeout, NewStopTimeout(""))
	registry.Register(CodeStopRaised, NewStopRaised("", errors.New("stop raised")))
	registry.Register(CodeKernelGone, NewKernelGone())
	registry.Register(CodeNotActive, NewNotActive(""))
	registry.Register(CodeCallbackError, NewCallbackError("", "", errors.New("callback error")))
	registry.Register(CodeInternalError, NewInternal("internal server error"))

	return registry
}

// ErrorHandler handles errors in a standardized way
type ErrorHandler struct {
	registry *ErrorRegistry
	handlers map[ErrorType]func(*AppError) *AppError
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(registry *ErrorRegistry) *ErrorHandler {
	return &ErrorHandler{
		registry: registry,
		handlers: make(map[ErrorType]func(*AppError) *AppError),
	}
}

// Handle handles an error
func (h *ErrorHandler) Handle(err error) *AppError {
	if err == nil {
		return nil
	}

	appErr := FromError(err)

	// Apply type-specific handlers
	if handler, ok := h.handlers[appErr.Type]; ok {
		return handler(appErr)
	}

	return appErr
}

// HandleFunc registers a handler for a specific error type
func (h *ErrorHandler) HandleFunc(errType ErrorType, fn func(*AppError) *AppError) {
	h.handlers[errType] = fn
}

// Wrap wraps an error with context
func (h *ErrorHandler) Wrap(err error, message string) *AppError {
	return h.Handle(Wrap(err, message))
}

// ErrorConverter converts errors to HTTP responses, used by the
// introspection API.
type ErrorConverter struct {
	errorHandler *ErrorHandler
}

// NewErrorConverter creates a new error converter
func NewErrorConverter(errorHandler *ErrorHandler) *ErrorConverter {
	return &ErrorConverter{
		errorHandler: errorHandler,
	}
}

// ToHTTPResponse converts an error to an HTTP response
func (c *ErrorConverter) ToHTTPResponse(err error) HTTPErrorResponse {
	appErr := c.errorHandler.Handle(err)

	response := HTTPErrorResponse{
		Error: ErrorResponse{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	}

	if len(appErr.Details) > 0 {
		response.Error.Details = appErr.Details
	}

	if appErr.HTTPStatus > 0 {
		response.HTTPStatus = appErr.HTTPStatus
	} else {
		response.HTTPStatus = http.StatusInternalServerError
	}

	return response
}

// HTTPErrorResponse represents an HTTP error response
type HTTPErrorResponse struct {
	HTTPStatus int           `json:"-"`
	Error      ErrorResponse `json:"error"`
}

// ErrorResponse represents the error part of an HTTP response
type ErrorResponse struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorFormatter formats errors for display
type ErrorFormatter struct {
	showStack bool
	showInner bool
}

// NewErrorFormatter creates a new error formatter
func NewErrorFormatter(showStack bool, showInner bool) *ErrorFormatter {
	return &ErrorFormatter{
		showStack: showStack,
		showInner: showInner,
	}
}

// Format formats an error as a string
func (f *ErrorFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", appErr.Type, appErr.Message))

	if appErr.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", appErr.Code))
	}

	if len(appErr.Details) > 0 {
		for k, v := range appErr.Details {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}

	if f.showStack && len(appErr.Stack) > 0 {
		parts = append(parts, "stack:")
		for _, s := range appErr.Stack {
			parts = append(parts, "  "+s)
		}
	}

	if f.showInner && appErr.InnerError != nil {
		parts = append(parts, "caused_by: "+appErr.InnerError.Error())
	}

	return strings.Join(parts, " | ")
}

// ErrorLogger logs errors with context
type ErrorLogger struct {
	logger ErrorLoggerInterface
}

// ErrorLoggerInterface defines the interface for logging
type ErrorLoggerInterface interface {
	Error(msg string, fields ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) interface{}
}

// NewErrorLogger creates a new error logger
func NewErrorLogger(logger ErrorLoggerInterface) *ErrorLogger {
	return &ErrorLogger{
		logger: logger,
	}
}

// Log logs an error with context
func (l *ErrorLogger) Log(err error, context map[string]interface{}) {
	if err == nil {
		return
	}

	appErr := FromError(err)

	fields := make(map[string]interface{})
	fields["error_type"] = appErr.Type
	fields["error_code"] = appErr.Code
	fields["error_message"] = appErr.Message

	if len(appErr.Details) > 0 {
		for k, v := range appErr.Details {
			fields["detail_"+k] = v
		}
	}

	if len(appErr.Stack) > 0 {
		fields["stack"] = appErr.Stack
	}

	if context != nil {
		for k, v := range context {
			fields[k] = v
		}
	}

	l.logger.Errorf("error occurred: %s", appErr.Error())
}

// ErrorRecover recovers from panics and converts them to errors. Used by
// the registry's dispatch loop so one panicking handler cannot take down
// the worker pool.
func ErrorRecover() (err error) {
	if r := recover(); r != nil {
		switch v := r.(type) {
		case error:
			err = v
		case string:
			err = errors.New(v)
		default:
			err = fmt.Errorf("%v", v)
		}
		err = Wrap(err, "panic recovered")
	}
	return
}

// ErrorRecoverWithHandler recovers from panics and hands the resulting
// AppError to handler.
func ErrorRecoverWithHandler(handler func(*AppError)) {
	if r := recover(); r != nil {
		var appErr *AppError
		switch v := r.(type) {
		case error:
			appErr = Wrap(v, "panic recovered")
		case string:
			appErr = New(ErrorTypeInternal, v)
		default:
			appErr = New(ErrorTypeInternal, fmt.Sprintf("%v", v))
		}
		appErr = appErr.WithStack()
		handler(appErr)
	}
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}

// ErrorChain represents a chain of errors accumulated across a bundle scan
// or a cascading reload.
type ErrorChain struct {
	errors []*AppError
}

// NewErrorChain creates a new error chain
func NewErrorChain() *ErrorChain {
	return &ErrorChain{
		errors: make([]*AppError, 0),
	}
}

// Add adds an error to the chain
func (c *ErrorChain) Add(err *AppError) *ErrorChain {
	if err != nil {
		c.errors = append(c.errors, err)
	}
	return c
}

// HasErrors checks if the chain has errors
func (c *ErrorChain) HasErrors() bool {
	return len(c.errors) > 0
}

// Error returns the combined error message
func (c *ErrorChain) Error() string {
	if !c.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range c.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, " | ")
}

// Errors returns all errors in the chain
func (c *ErrorChain) Errors() []*AppError {
	return c.errors
}

// Last returns the last error in the chain
func (c *ErrorChain) Last() *AppError {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors[len(c.errors)-1]
}

// First returns the first error in the chain
func (c *ErrorChain) First() *AppError {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors[0]
}

// Filter filters errors by type
func (c *ErrorChain) Filter(errType ErrorType) *ErrorChain {
	filtered := NewErrorChain()
	for _, err := range c.errors {
		if err.Type == errType {
			filtered.Add(err)
		}
	}
	return filtered
}

// HasType checks if the chain has an error of the specified type
func (c *ErrorChain) HasType(errType ErrorType) bool {
	for _, err := range c.errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

// ToHTTPStatus converts the error chain to an HTTP status code, highest
// priority first.
func (c *ErrorChain) ToHTTPStatus() int {
	if !c.HasErrors() {
		return http.StatusOK
	}

	statusMap := make(map[int]bool)
	for _, err := range c.errors {
		if err.HTTPStatus > 0 {
			statusMap[err.HTTPStatus] = true
		}
	}

	priorities := []int{http.StatusForbidden, http.StatusGone, http.StatusConflict,
		http.StatusUnprocessableEntity, http.StatusGatewayTimeout, http.StatusInternalServerError}
	for _, status := range priorities {
		if statusMap[status] {
			return status
		}
	}

	return http.StatusInternalServerError
}
