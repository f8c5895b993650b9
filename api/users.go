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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/apierror"
)

func (a Api) GetUser(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.bot.GetUser(c.Request.Context(), id)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetUserInteractions(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	limit, offset := pagination(c)

	resp, err := a.bot.GetUserInteractions(c.Request.Context(), id, limit, offset)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetUserVerifications(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	limit, offset := pagination(c)

	resp, err := a.bot.GetUserVerifications(c.Request.Context(), id, limit, offset)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// renderError maps store error codes onto HTTP statuses.
func (a Api) renderError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
