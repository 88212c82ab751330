package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldBoardID    = "board_id"
	FieldCardID     = "card_id"
	FieldAmount     = "amount"
	FieldPaid       = "paid"
	FieldPaidTotal  = "paid_total"
	FieldBackend    = "backend"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSession   = "session"
	ComponentImporter  = "importer"
	ComponentStorage   = "storage"
	ComponentCache     = "cache"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
	ComponentFetch     = "fetch"
	ComponentBackend   = "backend"
	ComponentRateLimit = "rate_limit"
	ComponentCLI       = "cli"
)

// Operations
const (
	OpImport   = "import"
	OpAutoLoad = "autoload"
	OpEdit     = "edit"
	OpExport   = "export"
	OpRender   = "render"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields builds key/value pairs for slog in a fixed order.
type Fields []any

func NewFields() Fields {
	return Fields{}
}

func (f Fields) WithRequestID(id string) Fields {
	return append(f, FieldRequestID, id)
}

func (f Fields) WithClientIP(ip string) Fields {
	return append(f, FieldClientIP, ip)
}

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, FieldError, err.Error())
}

func (f Fields) WithOperation(op string) Fields {
	return append(f, FieldOperation, op)
}

// WithAnnotation adds the fields describing a single card edit.
func (f Fields) WithAnnotation(boardID, cardID, amount string, paid bool) Fields {
	return append(f,
		FieldBoardID, boardID,
		FieldCardID, cardID,
		FieldAmount, amount,
		FieldPaid, paid)
}

func (f Fields) WithHTTPRequest(method, path, query, userAgent string) Fields {
	return append(f,
		FieldMethod, method,
		FieldPath, path,
		FieldQuery, query,
		FieldUserAgent, userAgent)
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	return append(f,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400)
}
