package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldAccountID    = "account_id"
	FieldCardID       = "card_id"
	FieldAmountYen    = "amount_yen"
	FieldEventCount   = "event_count"
	FieldHorizonStart = "horizon_start"
	FieldHorizonEnd   = "horizon_end"
	FieldWithdrawDate = "withdraw_date"
	FieldRowCount     = "row_count"
)

// Components defines standard subsystem names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentImport  = "import"
	ComponentExport  = "export"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpRebuild  = "rebuild"
	OpForecast = "forecast"
	OpImport   = "import"
	OpReport   = "report"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
