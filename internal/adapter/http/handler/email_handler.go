package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// お礼メールを直接送る契約。
type DirectSender interface {
	SendDirect(ctx context.Context, to, name, postTitle string) error
}

type EmailHandler struct {
	log    *zap.Logger
	sender DirectSender
}

func NewEmailHandler(log *zap.Logger, sender DirectSender) *EmailHandler {
	return &EmailHandler{log: log, sender: sender}
}

/**
 * POST /send-email
 * 申請の流れを通さずにその場で送信し、結果をそのまま返す。
 */
func (h *EmailHandler) Send(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "email is required")
		return
	}

	if err := h.sender.SendDirect(c.Request.Context(), req.Email, req.UserName, req.PostTitle); err != nil {
		// 送信失敗の詳細は SendDirect 側でログ済み
		c.JSON(http.StatusInternalServerError, errorResponse{Error: messageEmailSendFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": messageEmailSent})
}
