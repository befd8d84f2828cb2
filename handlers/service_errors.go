package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/services"
	"github.com/imfrisiv/mail-backend/services/compose"
	"github.com/imfrisiv/mail-backend/utils"
)

// StatusForError maps domain and compose errors to an HTTP status
func StatusForError(err error) int {
	var aggErr *compose.AggregateError
	if errors.As(err, &aggErr) {
		return aggErr.HTTPStatus()
	}

	switch services.GetErrorType(err) {
	case services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case services.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case services.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleComposeError writes err in the compose error body shape
func HandleComposeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := StatusForError(err)

	var aggErr *compose.AggregateError
	switch {
	case errors.As(err, &aggErr):
		// failures were logged by the orchestrator
		writeComposeError(w, status, services.ErrAllProvidersFailed.Message, aggErr.Failures, logger)

	case services.GetErrorType(err) == "" || services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeComposeError(w, status, "An internal error occurred", nil, logger)

	default:
		logger.Debug("handled service error",
			zap.String("type", string(services.GetErrorType(err))),
			zap.Int("status", status),
			zap.Error(err))
		writeComposeError(w, status, services.GetErrorMessage(err), nil, logger)
	}
}

func writeComposeError(w http.ResponseWriter, status int, message string, details []compose.Failure, logger *zap.Logger) {
	if err := utils.WriteJSON(w, status, ComposeErrorResponse{
		Success: false,
		Error:   message,
		Details: details,
	}); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleServiceError maps domain errors to the generic JSON error body used
// outside the compose endpoint
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := StatusForError(err)
	message := services.GetErrorMessage(err)
	if status == http.StatusInternalServerError {
		logger.Error("internal server error", zap.Error(err))
		message = "An internal error occurred"
	}

	if err := utils.WriteError(w, status, message, services.GetErrorDetails(err)); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}
