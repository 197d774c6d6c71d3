package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
)

// 募集投稿の JSON 表現。フロントエンドが使う旧サーバーのキー名に揃えている。
type PostResponse struct {
	ID               string `json:"_id"`
	PostTitle        string `json:"postTitle"`
	Deadline         string `json:"deadline"`
	OrganizerEmail   string `json:"organizerEmail"`
	OrganizerName    string `json:"organizerName,omitempty"`
	VolunteersNeeded int    `json:"volunteersNeeded"`
	Description      string `json:"description,omitempty"`
	Category         string `json:"category,omitempty"`
	Location         string `json:"location,omitempty"`
	Thumbnail        string `json:"thumbnail,omitempty"`
	// Attributes は既知の項目と同じ階層に並べて返す。
	Attributes map[string]any `json:"-"`
}

// MarshalJSON は追加項目を先に詰め、既知の項目で上書きする。
func (r PostResponse) MarshalJSON() ([]byte, error) {
	type plain PostResponse
	known, err := json.Marshal(plain(r))
	if err != nil || len(r.Attributes) == 0 {
		return known, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(r.Attributes)+len(fields))
	for k, v := range r.Attributes {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

func toPostResponse(p *post.Post) PostResponse {
	f := p.Fields()
	return PostResponse{
		ID:               string(p.ID()),
		PostTitle:        f.Title,
		Deadline:         post.FormatDeadline(f.Deadline),
		OrganizerEmail:   f.OrganizerEmail,
		OrganizerName:    f.OrganizerName,
		VolunteersNeeded: f.VolunteersNeeded,
		Description:      f.Description,
		Category:         f.Category,
		Location:         f.Location,
		Thumbnail:        f.Thumbnail,
		Attributes:       f.Attributes,
	}
}

func toPostResponses(posts []*post.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}

// toRequestResponse は追加項目を先に詰め、既知の項目で上書きする。
func toRequestResponse(r *request.Request) map[string]any {
	f := r.Fields()
	out := make(map[string]any, len(f.Attributes)+6)
	for k, v := range f.Attributes {
		out[k] = v
	}
	out["_id"] = string(r.ID())
	out[request.FieldPostID] = string(f.PostID)
	out[request.FieldVolunteerEmail] = f.VolunteerEmail
	out[request.FieldVolunteerName] = f.VolunteerName
	out[request.FieldPostTitle] = f.PostTitle
	out[request.FieldState] = string(r.State())
	return out
}

func toRequestResponses(list []*request.Request) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, r := range list {
		out = append(out, toRequestResponse(r))
	}
	return out
}

// 書き込み結果の JSON 表現。
type insertResultResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type updateResultResponse struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type deleteResultResponse struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

func insertResult(r repository.InsertResult) insertResultResponse {
	return insertResultResponse{Acknowledged: true, InsertedID: r.InsertedID}
}

func updateResult(r repository.UpdateResult) updateResultResponse {
	return updateResultResponse{Acknowledged: true, MatchedCount: r.Matched, ModifiedCount: r.Modified}
}

func deleteResult(r repository.DeleteResult) deleteResultResponse {
	return deleteResultResponse{Acknowledged: true, DeletedCount: r.Deleted}
}

// POST /volunteer-request の結果。
type createRequestResponse struct {
	InsertResult insertResultResponse `json:"insertResult"`
	UpdatePost   updateResultResponse `json:"updatePost"`
}

// DELETE /cancel-request/:id の結果。申請が無ければ updatePost は null。
type cancelRequestResponse struct {
	DeleteResult deleteResultResponse  `json:"deleteResult"`
	UpdatePost   *updateResultResponse `json:"updatePost"`
}

// flexInt はフォームから文字列で届く数値も受け付ける。
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		v, err := strconv.Atoi(num.String())
		if err != nil {
			return fmt.Errorf("volunteersNeeded: %w", err)
		}
		*n = flexInt(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("volunteersNeeded: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("volunteersNeeded: %w", err)
	}
	*n = flexInt(v)
	return nil
}

// POST /volunteer-posts の入力。
type createPostRequest struct {
	PostTitle        string  `json:"postTitle"`
	Deadline         string  `json:"deadline"`
	OrganizerEmail   string  `json:"organizerEmail"`
	OrganizerName    string  `json:"organizerName"`
	VolunteersNeeded flexInt `json:"volunteersNeeded"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	Location         string  `json:"location"`
	Thumbnail        string  `json:"thumbnail"`
}

// PUT /volunteer-posts/:id の入力。指定されたキーだけを更新する。
type updatePostRequest struct {
	PostTitle        *string  `json:"postTitle"`
	Deadline         *string  `json:"deadline"`
	OrganizerEmail   *string  `json:"organizerEmail"`
	OrganizerName    *string  `json:"organizerName"`
	VolunteersNeeded *flexInt `json:"volunteersNeeded"`
	Description      *string  `json:"description"`
	Category         *string  `json:"category"`
	Location         *string  `json:"location"`
	Thumbnail        *string  `json:"thumbnail"`
}

func (r updatePostRequest) toPatch() (post.Patch, error) {
	patch := post.Patch{
		Title:          r.PostTitle,
		OrganizerEmail: r.OrganizerEmail,
		OrganizerName:  r.OrganizerName,
		Description:    r.Description,
		Category:       r.Category,
		Location:       r.Location,
		Thumbnail:      r.Thumbnail,
	}
	if r.Deadline != nil {
		d, err := post.ParseDeadline(*r.Deadline)
		if err != nil {
			return post.Patch{}, err
		}
		patch.Deadline = &d
	}
	if r.VolunteersNeeded != nil {
		n := int(*r.VolunteersNeeded)
		patch.VolunteersNeeded = &n
	}
	return patch, nil
}

// extraAttributes は本文のうち既知の項目以外を取り出す。無ければ nil。
func extraAttributes(body map[string]any) map[string]any {
	var extra map[string]any
	for k, v := range body {
		if !post.IsAttributeKey(k) {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra
}

// POST /send-email の入力。
type sendEmailRequest struct {
	Email     string `json:"email"`
	UserName  string `json:"userName"`
	PostTitle string `json:"postTitle"`
}
