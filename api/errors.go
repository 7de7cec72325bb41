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
	"errors"
	"net/http"
	"strconv"

	"github.com/fraudlens/caseflow/api/middleware"
	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/gin-gonic/gin"
)

// errorResponse writes err as {code, message, details} with the status its code maps to.
func errorResponse(c *gin.Context, err error) {
	var apiErr apierror.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apierror.APIError{Code: apierror.ErrInternalServer, Message: "An unexpected error occurred"}
	}

	body := gin.H{"code": apiErr.Code, "message": apiErr.Message}
	switch details := apiErr.Details.(type) {
	case nil:
	case error:
		if apiErr.Code != apierror.ErrInternalServer {
			body["details"] = details.Error()
		}
	default:
		body["details"] = details
	}

	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), body)
}

func badRequest(c *gin.Context, message string, details interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{"code": apierror.ErrBadRequest, "message": message, "details": details})
}

// actor returns the authenticated actor. Routes are mounted behind Authenticate, so a
// missing actor means the router was wired without it.
func actor(c *gin.Context) (model.Actor, bool) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "message": "Authentication required"})
	}
	return a, ok
}

// pagination reads limit and offset query parameters.
func pagination(c *gin.Context) (int, int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer", nil)
		return 0, 0, false
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative integer", nil)
		return 0, 0, false
	}
	return limit, offset, true
}
