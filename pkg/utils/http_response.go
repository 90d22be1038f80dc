package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
)

type JSONResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func ResponseWithSuccess(
	c *gin.Context,
	statusCode int,
	message string,
	data interface{},
) {
	c.JSON(statusCode, JSONResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ResponseWithError(
	c *gin.Context,
	statusCode int,
	code string,
	message string,
	errorDetails interface{},
) {
	c.JSON(statusCode, JSONResponse{
		Success: false,
		Code:    code,
		Message: message,
		Error:   errorDetails,
	})
}

// ResponseWithAppError writes err using its code and status. Errors that are
// not an *apperrors.AppError are reported as INTERNAL_ERROR.
func ResponseWithAppError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	ResponseWithError(c, appErr.StatusCode, appErr.Code, appErr.Message, appErr.Details)
}
