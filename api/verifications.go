/*
Copyright 2024 OPTRIXTRADES Authors.

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
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/Fmsticks2/OPTRIXTRADESADMINBOT/api/model"
)

func (a Api) SubmitVerification(c *gin.Context) {
	var newSubmission model2.SubmitVerification
	if err := c.ShouldBindJSON(&newSubmission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newSubmission.ValidateSubmitVerification()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.bot.SubmitVerification(c.Request.Context(), newSubmission.UserID, newSubmission.Identifier, newSubmission.ArtifactRef, time.Now())
	if err != nil {
		a.renderError(c, err)
		return
	}
	if resp == nil {
		// Identifier parked; no decision until the artifact arrives.
		c.JSON(http.StatusAccepted, gin.H{"status": "AWAITING_ARTIFACT"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetReviewQueue(c *gin.Context) {
	limit, offset := pagination(c)

	resp, err := a.bot.GetReviewQueue(c.Request.Context(), limit, offset)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetReviewEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.bot.GetReviewEntry(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ResolveReviewEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var resolve model2.ResolveEntry
	if err := c.ShouldBindJSON(&resolve); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := resolve.ValidateResolveEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.bot.OnAdminResolve(c.Request.Context(), id, resolve.Resolver, resolve.ToResolution())
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
