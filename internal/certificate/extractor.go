// Package certificate turns uploaded certificate artifacts into the degree
// hash the ledger verifies against. The ledger itself never sees artifacts,
// only hashes.
package certificate

import (
	"context"
	"encoding/json"

	"veryphy/internal/ledger/models"
	dErrors "veryphy/pkg/domain-errors"
)

// Extractor derives the degree hash embedded in or computable from a
// certificate artifact. Implementations exist per artifact format; a scanned
// QR code, a signed PDF attachment, or the structured JSON form handled here.
type Extractor interface {
	ExtractHash(ctx context.Context, artifact []byte) (string, error)
}

// fields is the structured certificate payload produced by issuing portals.
type fields struct {
	StudentID     string `json:"studentId"`
	StudentName   string `json:"studentName"`
	DegreeName    string `json:"degreeName"`
	InstitutionID string `json:"universityId"`
}

// JSONExtractor handles structured JSON certificates by recomputing the
// canonical degree hash from their fields.
type JSONExtractor struct{}

func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

func (e *JSONExtractor) ExtractHash(_ context.Context, artifact []byte) (string, error) {
	var f fields
	if err := json.Unmarshal(artifact, &f); err != nil {
		return "", dErrors.Wrap(dErrors.CodeBadRequest, "certificate is not valid JSON", err)
	}
	if f.StudentID == "" || f.StudentName == "" || f.DegreeName == "" || f.InstitutionID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "certificate is missing required fields")
	}
	return models.ComputeDegreeHash(f.StudentID, f.StudentName, f.DegreeName, f.InstitutionID), nil
}
