package handler

import (
	"context"
	"net/http"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// 募集投稿ユースケースの契約。
type PostCatalog interface {
	ListUpcoming(ctx context.Context) ([]*post.Post, error)
	Search(ctx context.Context, query string) ([]*post.Post, error)
	ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error)
	Create(ctx context.Context, in *postusecase.CreateInput) (*repository.InsertResult, error)
	Get(ctx context.Context, id string) (*post.Post, error)
	Update(ctx context.Context, id string, patch post.Patch) (*repository.UpdateResult, error)
	Delete(ctx context.Context, id string) (*repository.DeleteResult, error)
}

type PostHandler struct {
	log     *zap.Logger
	catalog PostCatalog
}

// PostHandler を生成する。
func NewPostHandler(log *zap.Logger, catalog PostCatalog) *PostHandler {
	return &PostHandler{log: log, catalog: catalog}
}

// GET /volunteer-now
func (h *PostHandler) ListUpcoming(c *gin.Context) {
	posts, err := h.catalog.ListUpcoming(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponses(posts))
}

// GET /volunteer-posts?search=
func (h *PostHandler) Search(c *gin.Context) {
	posts, err := h.catalog.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponses(posts))
}

// GET /my-posts?email=
func (h *PostHandler) ListMine(c *gin.Context) {
	posts, err := h.catalog.ListByOrganizer(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponses(posts))
}

/**
 * POST /volunteer-posts の本文を検証し、ユースケースへ委譲して採番結果を返す。
 */
func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	var body map[string]any
	// JSON パースに失敗したら入力不備
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.catalog.Create(c.Request.Context(), &postusecase.CreateInput{
		Title:            req.PostTitle,
		Deadline:         req.Deadline,
		OrganizerEmail:   req.OrganizerEmail,
		OrganizerName:    req.OrganizerName,
		VolunteersNeeded: int(req.VolunteersNeeded),
		Description:      req.Description,
		Category:         req.Category,
		Location:         req.Location,
		Thumbnail:        req.Thumbnail,
		Attributes:       extraAttributes(body),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, insertResult(*res))
}

// GET /volunteer-posts/:id 未存在なら null を返す。
func (h *PostHandler) Get(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, toPostResponse(p))
}

// PUT /volunteer-posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	var req updatePostRequest
	var body map[string]any
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		badRequest(c, err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	patch.Attributes = extraAttributes(body)

	res, err := h.catalog.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updateResult(*res))
}

// DELETE /volunteer-posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	res, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, deleteResult(*res))
}
