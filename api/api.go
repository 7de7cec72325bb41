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
	"github.com/fraudlens/caseflow/api/middleware"
	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/session"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	caseFlow *caseflow.CaseFlow
	sessions *session.Store
	auth     *middleware.AuthMiddleware
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	flow := router.Group("/case-flow", a.auth.Authenticate())
	flow.POST("/submit", a.SubmitCase)
	flow.GET("/status/:caseId", a.GetCaseStatus)
	flow.GET("/timeline/:caseId", a.GetTimeline)
	flow.POST("/progress/:caseId", a.ProgressCase)
	flow.POST("/override/:caseId", a.OverrideCase)
	flow.POST("/repair/:caseId", a.RepairTimeline)

	flow.GET("/cases", a.ListCases)
	flow.GET("/my-cases", a.MyCases)
	flow.GET("/assigned", a.AssignedCases)

	flow.GET("/crpc/:caseId", a.GetCRPCDocuments)
	flow.GET("/crpc/download/:documentId", a.GetCRPCDocument)

	flow.GET("/scammers/:scammerId", a.GetScammer)
	flow.GET("/stages", a.GetStages)
	flow.POST("/logout", a.Logout)

	return a.router
}

// NewAPI builds the HTTP surface. sessions may be nil, in which case tokens are trusted on
// their signature alone and logout is a no-op.
func NewAPI(cf *caseflow.CaseFlow, signer *session.TokenSigner, sessions *session.Store) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{caseFlow: cf, sessions: sessions, auth: middleware.NewAuthMiddleware(signer, sessions), router: r}
}
