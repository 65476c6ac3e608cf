package model

import "time"

// ProductURL is a detail-page URL discovered by the list_collection stage
// and consumed by detail_collection.
type ProductURL string

// ProductRecord is one certification record parsed from a detail page,
// validated, and persisted by database_save.
type ProductRecord struct {
	URL             ProductURL
	Name            string
	CertificationID string
	Vendor          string
	Category        string
	CertifiedDate   time.Time
	Raw             map[string]string
}

// requiredFields lists the ProductRecord fields data_validation treats as
// mandatory. A record missing any of these fails validation.
var requiredFields = []string{"Name", "CertificationID"}

// MissingRequiredFields returns the names of required fields that are
// empty on r, or nil if all are present.
func (r ProductRecord) MissingRequiredFields() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, "Name")
	}
	if r.CertificationID == "" {
		missing = append(missing, "CertificationID")
	}
	return missing
}

// UpsertOutcome classifies how database_save applied a validated record.
type UpsertOutcome string

const (
	UpsertNew       UpsertOutcome = "new"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// ValidationFailure pairs a rejected record with the reason it failed
// data_validation.
type ValidationFailure struct {
	Record ProductRecord
	Reason string
}
