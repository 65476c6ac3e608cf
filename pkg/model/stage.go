package model

// StageName identifies one of the four fixed pipeline stages. The set is
// closed — there is no plugin mechanism for additional stages (see
// "Dynamic dispatch over stage implementations" in the design notes).
type StageName string

// The four fixed stages, always executed in this order within a batch.
const (
	StageListCollection   StageName = "list_collection"
	StageDetailCollection StageName = "detail_collection"
	StageDataValidation   StageName = "data_validation"
	StageDatabaseSave     StageName = "database_save"
)

// Stages lists the fixed pipeline order. Callers should range over this
// instead of hardcoding the sequence.
var Stages = [4]StageName{
	StageListCollection,
	StageDetailCollection,
	StageDataValidation,
	StageDatabaseSave,
}

// IsValid reports whether s is one of the four fixed stages.
func (s StageName) IsValid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// ErrorKind is the closed set of failure classifications a StageError can
// carry. Classification drives retry policy, never exception unwinding.
type ErrorKind string

const (
	ErrorNetworkTimeout ErrorKind = "network_timeout"
	ErrorServerError    ErrorKind = "server_error"
	ErrorRateLimit      ErrorKind = "rate_limit"
	ErrorParse          ErrorKind = "parse_error"
	ErrorDatabase       ErrorKind = "database_error"
	ErrorValidation     ErrorKind = "validation_error"
	ErrorCancelled      ErrorKind = "cancelled"
)

// BaseRecoverable reports the kind's default classification before any
// config-driven promotion to fatal is applied. Only Cancelled is
// unconditionally fatal.
func (k ErrorKind) BaseRecoverable() bool {
	return k != ErrorCancelled
}

// ConfigGated reports whether this kind's fatal/recoverable classification
// is controlled by a config flag (system.abort_on_database_error,
// system.abort_on_validation_error) rather than fixed.
func (k ErrorKind) ConfigGated() bool {
	return k == ErrorDatabase || k == ErrorValidation
}
