package handler

import (
	"time"

	"veryphy/internal/ledger/models"
)

type registerInstitutionRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	StakeAmount float64 `json:"stakeAmount"`
}

func (r registerInstitutionRequest) toModel() models.Institution {
	return models.Institution{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		StakeAmount: r.StakeAmount,
	}
}

type registerDegreeRequest struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"studentId"`
	StudentName   string     `json:"studentName"`
	DegreeName    string     `json:"degreeName"`
	InstitutionID string     `json:"universityId"`
	IssueDate     *time.Time `json:"issueDate,omitempty"`
	// Hash is optional; when omitted it is computed server-side from the
	// canonical degree fields.
	Hash string `json:"degreeHash,omitempty"`
}

func (r registerDegreeRequest) toModel() models.Degree {
	deg := models.Degree{
		ID:            r.ID,
		StudentID:     r.StudentID,
		StudentName:   r.StudentName,
		DegreeName:    r.DegreeName,
		InstitutionID: r.InstitutionID,
		Hash:          r.Hash,
	}
	if r.IssueDate != nil {
		deg.IssueDate = *r.IssueDate
	}
	if deg.Hash == "" {
		deg.Hash = models.ComputeDegreeHash(r.StudentID, r.StudentName, r.DegreeName, r.InstitutionID)
	}
	return deg
}

type recordVerificationRequest struct {
	ID            string  `json:"id"`
	DegreeID      string  `json:"degreeId,omitempty"`
	EmployerID    string  `json:"employerId"`
	Result        string  `json:"result"`
	PaymentAmount float64 `json:"paymentAmount"`
	PaymentStatus string  `json:"paymentStatus"`
}

func (r recordVerificationRequest) toModel() models.VerificationRecord {
	return models.VerificationRecord{
		ID:            r.ID,
		DegreeID:      r.DegreeID,
		EmployerID:    r.EmployerID,
		Result:        models.VerificationResultStatus(r.Result),
		PaymentAmount: r.PaymentAmount,
		PaymentStatus: r.PaymentStatus,
	}
}

type lifecycleRequest struct {
	Reason string `json:"reason"`
}

type certificateVerifyRequest struct {
	// Artifact is the raw certificate document, base64-encoded by
	// encoding/json's []byte handling.
	Artifact []byte `json:"artifact"`
}
