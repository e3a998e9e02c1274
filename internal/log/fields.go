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
	FieldLedgerKey  = "ledger_key"
	FieldGroupID    = "group_id"
	FieldRuleID     = "rule_id"
	FieldEventID    = "event_id"
	FieldAmount     = "amount_cents"
	FieldCurrency   = "currency"
	FieldPeriods    = "periods"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecurring = "recurring"
	ComponentWorker    = "worker"
	ComponentBackend   = "backend"
)

// Operations names the engine operations; errors and retries carry them.
const (
	OpStartup          = "startup"
	OpCreateLedger     = "create-ledger"
	OpUpdateLedger     = "update-ledger"
	OpGetLedger        = "get-ledger"
	OpDeleteRule       = "delete-rule"
	OpSplit            = "split"
	OpTick             = "tick"
	OpDeleteGroup      = "delete-group"
	OpDeleteExpense    = "delete-expense"
	OpDeleteIncome     = "delete-income"
	OpSetExpenseStatus = "set-expense-status"
	OpSetIncomeStatus  = "set-income-status"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error field; a nil error is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
