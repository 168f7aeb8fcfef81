// Package controllers wires the service layer to the gin REST boundary.
package controllers

import (
	"github.com/gin-gonic/gin"

	"stockwatch/services/apperr"
)

// respondError emits the uniform failure shape with the status code the
// error taxonomy dictates.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
