package handler

import (
	"errors"
	"net/http"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/ledger"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"
	requestusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/request"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// エラー応答の理由コード。
const (
	reasonInvalidID         = "invalid_id"
	reasonInvalidRequest    = "invalid_request"
	reasonPostNotFound      = "post_not_found"
	reasonCapacityExhausted = "capacity_exhausted"
	reasonInternalError     = "internal_error"
)

const (
	messageInvalidID       = "malformed id"
	messageInvalidRequest  = "invalid request body"
	messagePostNotFound    = "post not found"
	messageCapacityFull    = "no volunteer slots left for this post"
	messageInternalError   = "internal server error"
	messageEmailSent       = "Email sent successfully!"
	messageEmailSendFailed = "Failed to send email"
)

// エラー時のレスポンス。
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

/**
 * ユースケースやストアのエラーを HTTP ステータスと理由コードへ写し替える。
 * 想定外のエラーだけをログへ残す。
 */
func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		c.JSON(http.StatusBadRequest, errorResponse{Error: reasonInvalidID, Message: messageInvalidID})
	// 入力不備
	case errors.Is(err, postusecase.ErrNilInput),
		errors.Is(err, requestusecase.ErrNilInput),
		errors.Is(err, post.ErrEmptyTitle),
		errors.Is(err, post.ErrMissingDeadline),
		errors.Is(err, post.ErrInvalidDeadline),
		errors.Is(err, post.ErrNegativeCapacity),
		errors.Is(err, post.ErrEmptyPatch),
		errors.Is(err, request.ErrEmptyPostID),
		errors.Is(err, request.ErrEmptyVolunteerEmail),
		errors.Is(err, notification.ErrEmptyRecipient):
		c.JSON(http.StatusBadRequest, errorResponse{Error: reasonInvalidRequest, Message: err.Error()})
	case errors.Is(err, repository.ErrPostNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: reasonPostNotFound, Message: messagePostNotFound})
	case errors.Is(err, ledger.ErrCapacityExhausted):
		c.JSON(http.StatusConflict, errorResponse{Error: reasonCapacityExhausted, Message: messageCapacityFull})
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: reasonInternalError, Message: messageInternalError})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: reasonInvalidRequest, Message: message})
}
