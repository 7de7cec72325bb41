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

package api

import (
	"net/http"

	"github.com/fraudlens/caseflow"
	model2 "github.com/fraudlens/caseflow/api/model"
	"github.com/fraudlens/caseflow/model"
	"github.com/gin-gonic/gin"
)

// SubmitCase files a new fraud report for the calling user.
//
// Responses:
// - 201 Created: the case at step 1 with its first timeline entry.
// - 400 Bad Request: the payload is malformed or fails validation.
// - 403 Forbidden: the caller is not a reporting user.
func (a Api) SubmitCase(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req model2.SubmitCase
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.ValidateSubmitCase(); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	newCase, scammer := req.ToCase()
	resp, err := a.caseFlow.SubmitCase(c.Request.Context(), newCase, scammer, caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetCaseStatus(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	resp, err := a.caseFlow.GetCaseStatus(c.Request.Context(), c.Param("caseId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetTimeline(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	resp, err := a.caseFlow.ListTimeline(c.Request.Context(), c.Param("caseId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"case_id": c.Param("caseId"), "timeline": resp})
}

// ProgressCase advances a case by exactly one step.
//
// Responses:
// - 200 OK: the updated case and timeline.
// - 400 Bad Request: the body is invalid or step 6 was requested without an officer.
// - 403 Forbidden: the caller's role may not trigger the step or the case is not assigned to them.
// - 409 Conflict: another update to the case is in progress.
// - 422 Unprocessable Entity: the step is not the next step of the case.
// - 502 Bad Gateway: document generation or notice delivery failed.
func (a Api) ProgressCase(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req model2.ProgressCase
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.ValidateProgressCase(); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	resp, err := a.caseFlow.Advance(c.Request.Context(), c.Param("caseId"), model.Step(req.Step), caller, caseflow.AdvanceParams{
		OfficerID: req.OfficerIDOrEmpty(),
		Remarks:   req.RemarksOrEmpty(),
	})
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// OverrideCase is the audited manual override that moves a case past steps without their side effects.
func (a Api) OverrideCase(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req model2.OverrideCase
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.ValidateOverrideCase(); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	resp, err := a.caseFlow.ForceAdvance(c.Request.Context(), c.Param("caseId"), model.Step(req.Step), caller, caseflow.ForceAdvanceParams{
		Justification: req.Justification,
		OfficerID:     req.OfficerIDOrEmpty(),
	})
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) RepairTimeline(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	resp, err := a.caseFlow.RepairTimeline(c.Request.Context(), c.Param("caseId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type caseLister func(c *gin.Context, caller model.Actor, limit, offset int) ([]model.Case, error)

func (a Api) listCases(c *gin.Context, list caseLister) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	cases, err := list(c, caller, limit, offset)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if cases == nil {
		cases = []model.Case{}
	}

	c.JSON(http.StatusOK, gin.H{"cases": cases, "limit": limit, "offset": offset})
}

func (a Api) ListCases(c *gin.Context) {
	a.listCases(c, func(c *gin.Context, caller model.Actor, limit, offset int) ([]model.Case, error) {
		return a.caseFlow.ListCases(c.Request.Context(), caller, limit, offset)
	})
}

func (a Api) MyCases(c *gin.Context) {
	a.listCases(c, func(c *gin.Context, caller model.Actor, limit, offset int) ([]model.Case, error) {
		return a.caseFlow.MyCases(c.Request.Context(), caller, limit, offset)
	})
}

func (a Api) AssignedCases(c *gin.Context) {
	a.listCases(c, func(c *gin.Context, caller model.Actor, limit, offset int) ([]model.Case, error) {
		return a.caseFlow.AssignedCases(c.Request.Context(), caller, limit, offset)
	})
}

func (a Api) GetScammer(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	resp, err := a.caseFlow.GetScammer(c.Request.Context(), c.Param("scammerId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStages serves the stage table so dashboards never hardcode slugs or labels.
func (a Api) GetStages(c *gin.Context) {
	c.JSON(http.StatusOK, model.Stages())
}
