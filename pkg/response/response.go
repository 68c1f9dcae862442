// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSON sends a successful envelope with the given status.
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Fail sends an error envelope with the given status.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Success: false, Error: msg})
}

func OK(c *gin.Context, data interface{}) { JSON(c, http.StatusOK, data) }
func Created(c *gin.Context, data interface{}) { JSON(c, http.StatusCreated, data) }

// Accepted is for work handed to the background worker.
func Accepted(c *gin.Context, data interface{}) { JSON(c, http.StatusAccepted, data) }

func BadRequest(c *gin.Context, msg string) { Fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { Fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string) { Fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string) { Fail(c, http.StatusNotFound, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Fail(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string) { Fail(c, http.StatusInternalServerError, msg) }
