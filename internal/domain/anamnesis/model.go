package anamnesis

import (
	"encoding/json"
	"time"
)

// Record is the current anamnesis document for a patient. Sections are
// free-form JSON objects keyed by section name (allergies, medications,
// family history and so on); the store treats them as opaque.
type Record struct {
	PatientID    string                     `json:"patient_id"`
	Sections     map[string]json.RawMessage `json:"sections"`
	VersionID    string                     `json:"version_id"`
	UpdatedAt    time.Time                  `json:"updated_at"`
	LastEditedBy string                     `json:"last_edited_by"`
}

// Version is one entry of a record's append-only history. Every successful
// write appends exactly one entry carrying the written state, so the newest
// entry always mirrors the current record. PreviousSnapshot holds the
// record state the write replaced, or null for the first write.
type Version struct {
	Seq              int64                      `json:"seq"`
	VersionID        string                     `json:"version_id"`
	Sections         map[string]json.RawMessage `json:"sections"`
	EditedBy         string                     `json:"edited_by"`
	CreatedAt        time.Time                  `json:"created_at"`
	PreviousSnapshot json.RawMessage            `json:"previous_snapshot,omitempty"`
}

// ValidationResult reports structural problems with submitted sections.
// Validation never fails with an error; an invalid document is a normal
// outcome, not an exceptional one.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// maxSectionBytes bounds a single section payload. Large uploads belong in
// blob storage, not in a versioned JSONB column.
const maxSectionBytes = 64 * 1024

// Validate checks the structural shape of submitted sections: the sections
// object must be present (an empty one is fine), names non-empty, each value
// a valid JSON object within the size bound.
func Validate(sections map[string]json.RawMessage) ValidationResult {
	var problems []string

	if sections == nil {
		problems = append(problems, "sections object is required")
	}
	for name, body := range sections {
		if name == "" {
			problems = append(problems, "section name must not be empty")
			continue
		}
		if len(body) > maxSectionBytes {
			problems = append(problems, "section "+name+" exceeds the size limit")
			continue
		}
		if !json.Valid(body) {
			problems = append(problems, "section "+name+" is not valid JSON")
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			problems = append(problems, "section "+name+" must be a JSON object")
		}
	}

	return ValidationResult{Valid: len(problems) == 0, Problems: problems}
}
