package model

import "time"

// Recipient categories notified once a notice exists.
const (
	RecipientTelecom = "telecom"
	RecipientBanking = "banking"
	RecipientNodal   = "nodal"
)

var RecipientCategories = []string{RecipientTelecom, RecipientBanking, RecipientNodal}

type Recipient struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

// CRPCDocument is one generated Section 91 CrPC notice for a case.
type CRPCDocument struct {
	ID             int64                `json:"-"`
	DocumentID     string               `json:"document_id"`
	DocumentNumber string               `json:"document_number"`
	CaseID         string               `json:"case_id"`
	GeneratedBy    string               `json:"generated_by"`
	Recipients     map[string]Recipient `json:"recipients"`
	ArtifactRef    string               `json:"artifact_ref,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
}
