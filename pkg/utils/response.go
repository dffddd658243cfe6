package utils

import (
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every HTTP endpoint replies with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{Success: true, Message: message, Data: data})
}

// ErrorResponse writes a failure envelope. A nil err leaves the error field
// empty so validation messages are not duplicated.
func ErrorResponse(c *gin.Context, code int, message string, err error) {
	response := APIResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(code, response)
}
