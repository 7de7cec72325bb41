package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CaseType is the enumerated scam category of a report.
type CaseType string

const (
	CaseTypeUPIFraud       CaseType = "upi_fraud"
	CaseTypePhishing       CaseType = "phishing"
	CaseTypeInvestmentScam CaseType = "investment_scam"
	CaseTypeLoanAppScam    CaseType = "loan_app_scam"
	CaseTypeSextortion     CaseType = "sextortion"
	CaseTypeJobScam        CaseType = "job_scam"
	CaseTypeLotteryScam    CaseType = "lottery_scam"
	CaseTypeIdentityTheft  CaseType = "identity_theft"
	CaseTypeCardFraud      CaseType = "card_fraud"
	CaseTypeOther          CaseType = "other"
)

// CaseTypes lists every accepted case type.
var CaseTypes = []CaseType{
	CaseTypeUPIFraud, CaseTypePhishing, CaseTypeInvestmentScam, CaseTypeLoanAppScam, CaseTypeSextortion,
	CaseTypeJobScam, CaseTypeLotteryScam, CaseTypeIdentityTheft, CaseTypeCardFraud, CaseTypeOther,
}

type Location struct {
	State   string `json:"state"`
	City    string `json:"city"`
	Address string `json:"address,omitempty"`
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// FormData is the victim's structured report payload. It is stored and returned untouched.
type FormData struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Delivery is the outcome of notifying one recipient category.
type Delivery struct {
	Address string    `json:"address"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// StageError records the last failed side effect so dashboards can show where a case is stuck.
type StageError struct {
	Step    Step      `json:"step"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`

	// Notifications holds the per-category outcome of a failed notice run.
	Notifications map[string]Delivery `json:"notifications,omitempty"`
}

type Case struct {
	ID             int64               `json:"-"`
	CaseID         string              `json:"case_id"`
	CaseType       CaseType            `json:"case_type"`
	Description    string              `json:"description"`
	AmountLost     decimal.Decimal     `json:"amount_lost"`
	IncidentDate   time.Time           `json:"incident_date"`
	Location       Location            `json:"location"`
	Contact        Contact             `json:"contact"`
	Evidence       []string            `json:"evidence"`
	FormData       FormData            `json:"form_data"`
	ReporterID     string              `json:"reporter_id"`
	ScammerID      string              `json:"scammer_id,omitempty"`
	AssignedPolice string              `json:"assigned_police,omitempty"`
	CRPCDocumentID string              `json:"crpc_document_id,omitempty"`
	Notifications  map[string]Delivery `json:"notifications,omitempty"`
	LastError      *StageError         `json:"last_error,omitempty"`
	CurrentStep    Step                `json:"current_step"`
	Version        int64               `json:"version"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Status is derived from CurrentStep; it is never stored.
func (c *Case) Status() string {
	return c.CurrentStep.Slug()
}

func (c Case) MarshalJSON() ([]byte, error) {
	type alias Case
	return json.Marshal(struct {
		alias
		Status     string `json:"status"`
		StageLabel string `json:"stage_label"`
	}{alias(c), c.Status(), c.CurrentStep.Label()})
}

// CaseStatus is the read projection served to every dashboard: the case plus its ordered timeline.
type CaseStatus struct {
	Case     Case            `json:"case"`
	Timeline []TimelineEntry `json:"timeline"`
}
