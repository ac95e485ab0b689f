package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldSubject    = "subject"
	FieldKind       = "preference_kind"
	FieldItemID     = "item_id"
	FieldCount      = "count"
	FieldSource     = "source"
	FieldEvent      = "event"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentSelection   = "selection"
	ComponentPreferences = "preferences"
	ComponentNotify      = "notify"
	ComponentAMQP        = "amqp"
	ComponentRedis       = "redis"
	ComponentSheets      = "sheets"
	ComponentStorage     = "storage"
	ComponentCatalog     = "catalog"
	ComponentNavigation  = "navigation"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpRead      = "read"
	OpWrite     = "write"
	OpDelete    = "delete"
	OpSelect    = "select"
	OpRemove    = "remove"
	OpBootstrap = "bootstrap"
	OpPublish   = "publish"
	OpReload    = "reload"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSubject adds the session subject and, when authenticated, the user id.
func (f LogFields) WithSubject(subject, userID string) LogFields {
	f[FieldSubject] = subject
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
