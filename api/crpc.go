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

	"github.com/fraudlens/caseflow/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (a Api) GetCRPCDocuments(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	resp, err := a.caseFlow.GetCRPCDocuments(c.Request.Context(), c.Param("caseId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"case_id": c.Param("caseId"), "documents": resp})
}

// GetCRPCDocument returns a notice's metadata. When the notice has a rendered artifact the
// caller is redirected to it.
func (a Api) GetCRPCDocument(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	doc, err := a.caseFlow.GetCRPCDocument(c.Request.Context(), c.Param("documentId"), caller)
	if err != nil {
		errorResponse(c, err)
		return
	}

	if doc.ArtifactRef != "" && c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, doc.ArtifactRef)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Logout ends the session carried by the request token.
func (a Api) Logout(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}

	if a.sessions != nil {
		if err := a.sessions.End(c.Request.Context(), middleware.SessionIDFromContext(c)); err != nil {
			logrus.WithError(err).Error("failed to end session")
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_SERVER_ERROR", "message": "Could not end session"})
			return
		}
	}

	c.Status(http.StatusNoContent)
}
