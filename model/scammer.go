package model

import (
	"strings"
	"time"
)

// Scammer is a deduplicated perpetrator record shared across cases.
type Scammer struct {
	ID          int64     `json:"-"`
	ScammerID   string    `json:"scammer_id"`
	Name        string    `json:"name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	UPIID       string    `json:"upi_id,omitempty"`
	BankAccount string    `json:"bank_account,omitempty"`
	CaseCount   int       `json:"case_count"`
	CaseIDs     []string  `json:"case_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize trims identifying fields and lowercases the ones compared case-insensitively.
func (s *Scammer) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Phone = strings.ReplaceAll(strings.TrimSpace(s.Phone), " ", "")
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.UPIID = strings.ToLower(strings.TrimSpace(s.UPIID))
	s.BankAccount = strings.ReplaceAll(strings.TrimSpace(s.BankAccount), " ", "")
}

// HasIdentifier reports whether at least one deduplication field is set.
func (s *Scammer) HasIdentifier() bool {
	return s.Phone != "" || s.Email != "" || s.UPIID != "" || s.BankAccount != ""
}
