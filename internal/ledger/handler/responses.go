package handler

import (
	"veryphy/internal/ledger/models"
)

type idResponse struct {
	ID string `json:"id"`
}

type listInstitutionsResponse struct {
	Institutions []models.Institution `json:"institutions"`
}

type listDegreesResponse struct {
	Degrees []models.Degree `json:"degrees"`
}

type historyResponse struct {
	DegreeID string                `json:"degreeId"`
	Versions []models.HistoryEntry `json:"versions"`
}
