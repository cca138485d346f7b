package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the id the request logger assigns to every request.
const RequestIDHeader = "X-Request-ID"

// ResponseData is the envelope of every API response. Exactly one of Data
// and Error is set. RequestID echoes RequestIDHeader so a client can quote it
// when reporting a failure.
type ResponseData struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

func respond(c *gin.Context, status int, body ResponseData) {
	body.Status = status
	body.RequestID = c.Writer.Header().Get(RequestIDHeader)
	if status >= http.StatusBadRequest {
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(status, body)
}

// Success sends a 200 with data.
func Success(c *gin.Context, message string, data interface{}) {
	respond(c, http.StatusOK, ResponseData{Message: message, Data: data})
}

// Created sends a 201 with the created resource.
func Created(c *gin.Context, message string, data interface{}) {
	respond(c, http.StatusCreated, ResponseData{Message: message, Data: data})
}

// Error sends an error response and stops the handler chain. Message stays
// generic; the specific reason goes in Error.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	respond(c, statusCode, ResponseData{Message: "An error occurred", Error: errorMessage})
}

func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// Conflict is used when a concurrent request holds the resource; retrying
// may succeed.
func Conflict(c *gin.Context, errorMessage string) {
	Error(c, http.StatusConflict, errorMessage)
}

func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}
