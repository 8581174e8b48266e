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
	FieldOwner      = "owner"
	FieldMonthKey   = "month_key"
	FieldAmount     = "amount"
	FieldKind       = "kind"
	FieldGoalID     = "goal_id"
	FieldTrials     = "trials"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentGoals   = "goals"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpRecompute = "recompute"
	OpForecast  = "forecast"
	OpSimulate  = "simulate"
	OpReconcile = "reconcile"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)
