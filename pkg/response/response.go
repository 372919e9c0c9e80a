package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/backend/pkg/apperr"
)

// ErrorBody is the standardized error envelope.
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error renders err in the error envelope. Internal causes are never exposed.
func Error(c *gin.Context, err error) {
	ae := apperr.From(err)
	c.JSON(ae.Status(), Body{Success: false, Error: &ErrorBody{
		Code:    ae.Code,
		Message: ae.Message,
		Details: ae.Details,
	}})
}

// Abort renders err and stops the handler chain. Used by middleware.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Error: &ErrorBody{Code: "RATE_LIMITED", Message: msg}})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: &ErrorBody{Code: apperr.CodeInternal, Message: msg}})
}
