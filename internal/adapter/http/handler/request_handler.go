package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	requestusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/request"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 参加申請ユースケースの契約。
type RequestLifecycle interface {
	Create(ctx context.Context, in *requestusecase.CreateInput) (*requestusecase.CreateOutput, error)
	Cancel(ctx context.Context, id string) (*requestusecase.CancelOutput, error)
	ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error)
}

type RequestHandler struct {
	log       *zap.Logger
	lifecycle RequestLifecycle
}

func NewRequestHandler(log *zap.Logger, lifecycle RequestLifecycle) *RequestHandler {
	return &RequestHandler{log: log, lifecycle: lifecycle}
}

// 本文のうち申請本体として扱うキー。残りは追加項目として保存する。
var reservedRequestKeys = map[string]struct{}{
	"_id":                       {},
	request.FieldPostID:         {},
	request.FieldVolunteerEmail: {},
	request.FieldVolunteerName:  {},
	request.FieldPostTitle:      {},
	request.FieldState:          {},
	request.FieldCreatedAt:      {},
	request.FieldUpdatedAt:      {},
}

/**
 * POST /volunteer-request
 * 既知のキーを取り出し、それ以外のキーは追加項目として申請に残す。
 */
func (h *RequestHandler) Create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := &requestusecase.CreateInput{
		PostID:         stringField(body, request.FieldPostID),
		VolunteerEmail: stringField(body, request.FieldVolunteerEmail),
		VolunteerName:  stringField(body, request.FieldVolunteerName),
		PostTitle:      stringField(body, request.FieldPostTitle),
	}
	for k, v := range body {
		if _, ok := reservedRequestKeys[k]; ok {
			continue
		}
		if in.Attributes == nil {
			in.Attributes = make(map[string]any)
		}
		in.Attributes[k] = v
	}

	out, err := h.lifecycle.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, createRequestResponse{
		InsertResult: insertResult(out.Insert),
		UpdatePost:   updateResult(out.Capacity),
	})
}

// DELETE /cancel-request/:id 申請が無くても成功として Deleted 0 を返す。
func (h *RequestHandler) Cancel(c *gin.Context) {
	out, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := cancelRequestResponse{DeleteResult: deleteResult(out.Delete)}
	if out.Capacity != nil {
		u := updateResult(*out.Capacity)
		resp.UpdatePost = &u
	}
	c.JSON(http.StatusOK, resp)
}

// GET /volunteer-requests?email= と /my-volunteer-requests?email=
func (h *RequestHandler) ListMine(c *gin.Context) {
	list, err := h.lifecycle.ListByVolunteer(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponses(list))
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return strings.TrimSpace(s)
}
