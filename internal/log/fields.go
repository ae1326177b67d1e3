package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldImportID   = "import_id"
	FieldExternalID = "external_id"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldAmount     = "amount"
	FieldAttempts   = "attempts"
)

// Components defines standard component names
const (
	ComponentCLI     = "cli"
	ComponentFirefly = "firefly"
	ComponentImport  = "import"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)

// Operations defines standard operation names
const (
	OpStore   = "store"
	OpPublish = "publish"
	OpDrain   = "drain"
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

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
