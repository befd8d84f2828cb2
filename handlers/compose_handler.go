package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/middleware"
	"github.com/imfrisiv/mail-backend/services"
	"github.com/imfrisiv/mail-backend/services/compose"
	"github.com/imfrisiv/mail-backend/utils"
)

// ComposeService defines the interface for the compose orchestrator
type ComposeService interface {
	Compose(ctx context.Context, req compose.Request) (*compose.Result, error)
}

// ComposeRequest is the body of POST /api/compose
type ComposeRequest struct {
	Prompt  string `json:"prompt" validate:"notblank"`
	Context string `json:"context,omitempty"`
}

// ComposeResponse is the success body of POST /api/compose
type ComposeResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

// ComposeErrorResponse is the failure body of POST /api/compose.
// Details lists provider failures in attempt order.
type ComposeErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details []compose.Failure `json:"details,omitempty"`
}

// ComposeHandler handles compose HTTP requests
type ComposeHandler struct {
	service      ComposeService
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewComposeHandler creates a new ComposeHandler
func NewComposeHandler(service ComposeService, logger *zap.Logger) *ComposeHandler {
	return &ComposeHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: utils.DefaultMaxBodyBytes,
	}
}

// HandleCompose handles POST /api/compose
func (h *ComposeHandler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ComposeRequest
	if err := utils.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		if errors.Is(err, utils.ErrBodyTooLarge) {
			writeComposeError(w, http.StatusRequestEntityTooLarge, services.ErrRequestTooLarge.Message, nil, h.logger)
			return
		}
		HandleComposeError(w, services.ErrMalformedRequest, h.logger)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Info("request validation failed",
			zap.String("request_id", requestID),
			zap.Any("fields", utils.GetValidationFields(err)))
		HandleComposeError(w, services.ErrPromptRequired, h.logger)
		return
	}

	result, err := h.service.Compose(ctx, compose.Request{
		Prompt:    req.Prompt,
		Context:   req.Context,
		RequestID: requestID,
	})
	if err != nil {
		HandleComposeError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, ComposeResponse{
		Success:  true,
		Provider: result.Provider,
		Text:     result.Text,
	}); err != nil {
		h.logger.Error("failed to write compose response", zap.Error(err))
	}
}
