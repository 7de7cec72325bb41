/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/fraudlens/caseflow/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

const incidentDateFormat = "2006-01-02"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type ScammerInput struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	UPIID       string `json:"upi_id"`
	BankAccount string `json:"bank_account"`
}

type SubmitCase struct {
	CaseType     string          `json:"case_type"`
	Description  string          `json:"description"`
	AmountLost   string          `json:"amount_lost"`
	IncidentDate string          `json:"incident_date"`
	Location     model.Location  `json:"location"`
	Contact      model.Contact   `json:"contact"`
	Evidence     []string        `json:"evidence"`
	FormData     json.RawMessage `json:"form_data"`
	Scammer      *ScammerInput   `json:"scammer"`
}

type ProgressCase struct {
	Step      int     `json:"step"`
	OfficerID *string `json:"officer_id"`
	Remarks   *string `json:"remarks"`
}

type OverrideCase struct {
	Step          int     `json:"step"`
	Justification string  `json:"justification"`
	OfficerID     *string `json:"officer_id"`
}

func caseTypes() []interface{} {
	out := make([]interface{}, len(model.CaseTypes))
	for i, t := range model.CaseTypes {
		out[i] = string(t)
	}
	return out
}

func validateAmount(value interface{}) error {
	s, _ := value.(string)
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a decimal number")
	}
	if amount.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func validateIncidentDate(value interface{}) error {
	s, _ := value.(string)
	date, err := time.Parse(incidentDateFormat, s)
	if err != nil {
		return errors.New("please format the incident date as YYYY-MM-DD")
	}
	if date.After(time.Now().UTC()) {
		return errors.New("must not be in the future")
	}
	return nil
}

func (s *ScammerInput) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Email, validation.Match(emailPattern)),
		validation.Field(&s.Phone, validation.Length(0, 20)),
	)
}

func (s *SubmitCase) ValidateSubmitCase() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.CaseType, validation.Required, validation.In(caseTypes()...)),
		validation.Field(&s.Description, validation.Required, validation.Length(10, 5000)),
		validation.Field(&s.AmountLost, validation.Required, validation.By(validateAmount)),
		validation.Field(&s.IncidentDate, validation.Required, validation.By(validateIncidentDate)),
		validation.Field(&s.Location, validation.By(func(value interface{}) error {
			loc, _ := value.(model.Location)
			return validation.ValidateStruct(&loc,
				validation.Field(&loc.State, validation.Required),
				validation.Field(&loc.City, validation.Required),
			)
		})),
		validation.Field(&s.Contact, validation.By(func(value interface{}) error {
			contact, _ := value.(model.Contact)
			return validation.ValidateStruct(&contact,
				validation.Field(&contact.Name, validation.Required),
				validation.Field(&contact.Phone, validation.Required),
				validation.Field(&contact.Email, validation.Match(emailPattern)),
			)
		})),
		validation.Field(&s.Evidence, validation.Each(validation.Required)),
		validation.Field(&s.Scammer),
	)
}

// ToCase converts a validated submission into a case and its optional scammer.
func (s *SubmitCase) ToCase() (*model.Case, *model.Scammer) {
	amount, _ := decimal.NewFromString(s.AmountLost)
	incident, _ := time.Parse(incidentDateFormat, s.IncidentDate)

	c := &model.Case{
		CaseType:     model.CaseType(s.CaseType),
		Description:  strings.TrimSpace(s.Description),
		AmountLost:   amount,
		IncidentDate: incident,
		Location:     s.Location,
		Contact:      s.Contact,
		Evidence:     s.Evidence,
		FormData:     model.FormData{Version: 1, Data: s.FormData},
	}

	if s.Scammer == nil {
		return c, nil
	}
	scammer := &model.Scammer{
		Name:        s.Scammer.Name,
		Phone:       s.Scammer.Phone,
		Email:       s.Scammer.Email,
		UPIID:       s.Scammer.UPIID,
		BankAccount: s.Scammer.BankAccount,
	}
	scammer.Normalize()
	if !scammer.HasIdentifier() {
		return c, nil
	}
	return c, scammer
}

func validStep(value interface{}) error {
	step, _ := value.(int)
	if !model.Step(step).Valid() {
		return errors.New("must be between 1 and 9")
	}
	return nil
}

func (p *ProgressCase) ValidateProgressCase() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Step, validation.Required, validation.By(validStep)),
		validation.Field(&p.Remarks, validation.NilOrNotEmpty, validation.Length(0, 1000)),
	)
}

func (o *OverrideCase) ValidateOverrideCase() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Step, validation.Required, validation.By(validStep)),
		validation.Field(&o.Justification, validation.Required, validation.Length(10, 1000)),
	)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p *ProgressCase) OfficerIDOrEmpty() string {
	return derefString(p.OfficerID)
}

func (p *ProgressCase) RemarksOrEmpty() string {
	return derefString(p.Remarks)
}

func (o *OverrideCase) OfficerIDOrEmpty() string {
	return derefString(o.OfficerID)
}
