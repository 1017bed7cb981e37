package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Error codes
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeJobCanceled      = "JOB_CANCELED"
	CodeServiceError     = "SERVICE_ERROR"
	CodeNotConfigured    = "NOT_CONFIGURED"
	CodeUpgradeRequired  = "UPGRADE_REQUIRED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// NotConfigured reports a provider the job cannot start without
func NotConfigured(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeNotConfigured, message, nil)
}

// JobCanceled reports a job that was canceled before it produced a result
func JobCanceled(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeJobCanceled, message, nil)
}

var fiberCodes = map[int]string{
	fiber.StatusBadRequest:            CodeValidationError,
	fiber.StatusUnauthorized:          CodeUnauthorized,
	fiber.StatusNotFound:              CodeNotFound,
	fiber.StatusMethodNotAllowed:      CodeMethodNotAllowed,
	fiber.StatusRequestEntityTooLarge: CodePayloadTooLarge,
	fiber.StatusTooManyRequests:       CodeRateLimited,
	fiber.StatusUpgradeRequired:       CodeUpgradeRequired,
}

// Handler renders errors returned from routes and middleware in the
// standard envelope. Unknown errors are reported without their text.
func Handler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return ServiceError(c, "Internal Server Error")
	}
	code, ok := fiberCodes[fe.Code]
	if !ok {
		code = CodeServiceError
	}
	return Error(c, fe.Code, code, fe.Message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
