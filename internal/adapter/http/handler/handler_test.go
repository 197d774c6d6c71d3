package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	memqueue "github.com/souravMitra02/volunteer-project-server/internal/adapter/queue/memory"
	"github.com/souravMitra02/volunteer-project-server/internal/adapter/repository/memory"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/ledger"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"
	requestusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/request"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	router *gin.Engine
	queue  *memqueue.NotificationQueue
	sender *stubSender
}

func newTestServer(t *testing.T, policy ledger.Policy) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	q := memqueue.NewNotificationQueue(64)
	sender := &stubSender{}

	catalog := postusecase.NewCatalog(log, store)
	lifecycle := requestusecase.NewLifecycle(log, store, store, ledger.New(log, policy), q)
	router := NewRouter(log,
		NewPostHandler(log, catalog),
		NewRequestHandler(log, lifecycle),
		NewEmailHandler(log, sender),
	)
	return &testServer{router: router, queue: q, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("failed to marshal body: %v", err)
			}
			reader = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func (s *testServer) createPost(t *testing.T, title, deadline string, capacity int) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/volunteer-posts", map[string]any{
		"postTitle":        title,
		"deadline":         deadline,
		"organizerEmail":   "org@example.com",
		"volunteersNeeded": capacity,
	})
	expectStatus(t, rec, http.StatusOK)
	var got insertResultResponse
	decodeBody(t, body, &got)
	if got.InsertedID == "" || !got.Acknowledged {
		t.Fatalf("unexpected insert result: %+v", got)
	}
	return got.InsertedID
}

func (s *testServer) getPost(t *testing.T, id string) *PostResponse {
	t.Helper()
	rec, body := s.do(t, http.MethodGet, "/volunteer-posts/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	var got *PostResponse
	decodeBody(t, body, &got)
	return got
}

func TestScenarioA_UpcomingIncludesNewPost(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)
	for i, d := range []string{"2025-07-01", "2025-07-02", "2025-07-03", "2025-07-04", "2025-07-05", "2025-07-06"} {
		s.createPost(t, "Later "+string(rune('A'+i)), d, 3)
	}
	id := s.createPost(t, "Beach Cleanup", "2025-06-01", 5)

	rec, body := s.do(t, http.MethodGet, "/volunteer-now", nil)
	expectStatus(t, rec, http.StatusOK)
	var got []PostResponse
	decodeBody(t, body, &got)

	if len(got) != 6 {
		t.Fatalf("expected 6 posts but got %d", len(got))
	}
	if got[0].ID != id || got[0].Deadline != "2025-06-01" || got[0].VolunteersNeeded != 5 {
		t.Fatalf("expected Beach Cleanup first but got %+v", got[0])
	}
	if got[5].PostTitle != "Later E" {
		t.Fatalf("expected the latest deadline to be cut off, got %+v", got[5])
	}
}

func TestScenarioBC_CreateThenCancelRequest(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)
	postID := s.createPost(t, "Beach Cleanup", "2025-06-01", 5)

	rec, body := s.do(t, http.MethodPost, "/volunteer-request", map[string]any{
		"postId":         postID,
		"volunteerEmail": "a@x.com",
		"phone":          "555-0100",
	})
	expectStatus(t, rec, http.StatusOK)
	var created createRequestResponse
	decodeBody(t, body, &created)
	if created.UpdatePost.MatchedCount != 1 || created.UpdatePost.ModifiedCount != 1 {
		t.Fatalf("unexpected capacity result: %+v", created.UpdatePost)
	}
	if got := s.getPost(t, postID); got.VolunteersNeeded != 4 {
		t.Fatalf("expected 4 seats left but got %d", got.VolunteersNeeded)
	}

	rec, body = s.do(t, http.MethodGet, "/my-volunteer-requests?email=a@x.com", nil)
	expectStatus(t, rec, http.StatusOK)
	var mine []map[string]any
	decodeBody(t, body, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected one request but got %d", len(mine))
	}
	if mine[0]["postId"] != postID || mine[0]["phone"] != "555-0100" || mine[0]["postTitle"] != "Beach Cleanup" {
		t.Fatalf("unexpected request document: %v", mine[0])
	}

	// お礼メールのジョブはキューに積まれる
	job, err := s.queue.Dequeue(context.Background())
	if err != nil || job.To != "a@x.com" || job.Name != "Volunteer" {
		t.Fatalf("unexpected welcome job: %+v, %v", job, err)
	}

	rec, body = s.do(t, http.MethodDelete, "/cancel-request/"+created.InsertResult.InsertedID, nil)
	expectStatus(t, rec, http.StatusOK)
	var cancelled cancelRequestResponse
	decodeBody(t, body, &cancelled)
	if cancelled.DeleteResult.DeletedCount != 1 || cancelled.UpdatePost == nil || cancelled.UpdatePost.ModifiedCount != 1 {
		t.Fatalf("unexpected cancel result: %+v", cancelled)
	}
	if got := s.getPost(t, postID); got.VolunteersNeeded != 5 {
		t.Fatalf("expected 5 seats after cancel but got %d", got.VolunteersNeeded)
	}

	rec, body = s.do(t, http.MethodGet, "/volunteer-requests?email=a@x.com", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, body, &mine)
	if len(mine) != 0 {
		t.Fatalf("expected no requests but got %v", mine)
	}
}

func TestScenarioD_CancelMissingRequest(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)

	rec, body := s.do(t, http.MethodDelete, "/cancel-request/7b4e1c55-0000-4000-8000-000000000000", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(string(body), `"updatePost":null`) {
		t.Fatalf("expected null updatePost but got %s", body)
	}
	var got cancelRequestResponse
	decodeBody(t, body, &got)
	if got.DeleteResult.DeletedCount != 0 {
		t.Fatalf("expected 0 deleted but got %d", got.DeleteResult.DeletedCount)
	}
}

func TestScenarioE_SearchIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)
	beach := s.createPost(t, "Beach Cleanup Day", "2025-06-01", 5)
	s.createPost(t, "River Restoration", "2025-06-02", 5)

	rec, body := s.do(t, http.MethodGet, "/volunteer-posts?search=beach", nil)
	expectStatus(t, rec, http.StatusOK)
	var got []PostResponse
	decodeBody(t, body, &got)
	if len(got) != 1 || got[0].ID != beach {
		t.Fatalf("expected only Beach Cleanup Day but got %+v", got)
	}

	rec, body = s.do(t, http.MethodGet, "/volunteer-posts", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, body, &got)
	if len(got) != 2 {
		t.Fatalf("empty search should list all posts, got %d", len(got))
	}
}

func TestPostHandler_CRUD(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)
	id := s.createPost(t, "Beach Cleanup", "2025-06-01", 5)

	rec, body := s.do(t, http.MethodPut, "/volunteer-posts/"+id, `{"volunteersNeeded":"8","location":"Cox's Bazar"}`)
	expectStatus(t, rec, http.StatusOK)
	var updated updateResultResponse
	decodeBody(t, body, &updated)
	if updated.MatchedCount != 1 || updated.ModifiedCount != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	got := s.getPost(t, id)
	if got.VolunteersNeeded != 8 || got.Location != "Cox's Bazar" || got.PostTitle != "Beach Cleanup" {
		t.Fatalf("unexpected post after update: %+v", got)
	}

	rec, body = s.do(t, http.MethodGet, "/my-posts?email=org@example.com", nil)
	expectStatus(t, rec, http.StatusOK)
	var mine []PostResponse
	decodeBody(t, body, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected one organizer post but got %d", len(mine))
	}

	rec, body = s.do(t, http.MethodDelete, "/volunteer-posts/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	var deleted deleteResultResponse
	decodeBody(t, body, &deleted)
	if deleted.DeletedCount != 1 {
		t.Fatalf("expected one deleted but got %d", deleted.DeletedCount)
	}

	// 未存在は null
	rec, body = s.do(t, http.MethodGet, "/volunteer-posts/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("expected null body but got %s", body)
	}
}

func TestPostHandler_KeepsExtraFields(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)

	rec, body := s.do(t, http.MethodPost, "/volunteer-posts", map[string]any{
		"postTitle":        "River Restoration",
		"deadline":         "2025-06-15",
		"organizerEmail":   "org@example.com",
		"volunteersNeeded": 4,
		"skills":           "planting",
		"reservedBy":       []string{"forged"},
	})
	expectStatus(t, rec, http.StatusOK)
	var inserted insertResultResponse
	decodeBody(t, body, &inserted)

	rec, body = s.do(t, http.MethodPut, "/volunteer-posts/"+inserted.InsertedID, map[string]any{"shift": "morning"})
	expectStatus(t, rec, http.StatusOK)
	var updated updateResultResponse
	decodeBody(t, body, &updated)
	if updated.ModifiedCount != 1 {
		t.Fatalf("extra-field patch should modify: %+v", updated)
	}

	rec, body = s.do(t, http.MethodGet, "/volunteer-posts/"+inserted.InsertedID, nil)
	expectStatus(t, rec, http.StatusOK)
	var doc map[string]any
	decodeBody(t, body, &doc)
	if doc["skills"] != "planting" || doc["shift"] != "morning" || doc["postTitle"] != "River Restoration" {
		t.Fatalf("unexpected post document: %v", doc)
	}
	if _, ok := doc["reservedBy"]; ok {
		t.Fatalf("internal field leaked: %v", doc)
	}
}

func TestHandlers_ClientErrors(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)
	full := s.createPost(t, "Full", "2025-06-01", 0)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		reason string
	}{
		{"malformed post id", http.MethodGet, "/volunteer-posts/not-an-id", nil, http.StatusBadRequest, reasonInvalidID},
		{"malformed request id", http.MethodDelete, "/cancel-request/not-an-id", nil, http.StatusBadRequest, reasonInvalidID},
		{"broken json", http.MethodPost, "/volunteer-posts", `{"postTitle":`, http.StatusBadRequest, reasonInvalidRequest},
		{"missing title", http.MethodPost, "/volunteer-posts", map[string]any{"deadline": "2025-06-01"}, http.StatusBadRequest, reasonInvalidRequest},
		{"bad deadline", http.MethodPost, "/volunteer-posts", map[string]any{"postTitle": "A", "deadline": "soon"}, http.StatusBadRequest, reasonInvalidRequest},
		{"empty patch", http.MethodPut, "/volunteer-posts/" + full, map[string]any{}, http.StatusBadRequest, reasonInvalidRequest},
		{"request without email", http.MethodPost, "/volunteer-request", map[string]any{"postId": full}, http.StatusBadRequest, reasonInvalidRequest},
		{"request without post", http.MethodPost, "/volunteer-request", map[string]any{"volunteerEmail": "a@x.com"}, http.StatusBadRequest, reasonInvalidRequest},
		{"request for missing post", http.MethodPost, "/volunteer-request", map[string]any{"postId": "7b4e1c55-0000-4000-8000-000000000000", "volunteerEmail": "a@x.com"}, http.StatusNotFound, reasonPostNotFound},
		{"no seats left", http.MethodPost, "/volunteer-request", map[string]any{"postId": full, "volunteerEmail": "a@x.com"}, http.StatusConflict, reasonCapacityExhausted},
		{"email without address", http.MethodPost, "/send-email", map[string]any{"userName": "A"}, http.StatusBadRequest, reasonInvalidRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, tc.method, tc.path, tc.body)
			expectStatus(t, rec, tc.status)
			var got errorResponse
			decodeBody(t, body, &got)
			if got.Error != tc.reason {
				t.Fatalf("expected reason %q but got %q", tc.reason, got.Error)
			}
		})
	}
}

func TestEmailHandler_Send(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)

	rec, body := s.do(t, http.MethodPost, "/send-email", map[string]any{
		"email": "a@x.com", "userName": "Alice", "postTitle": "River Restoration",
	})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(string(body), messageEmailSent) {
		t.Fatalf("unexpected body: %s", body)
	}
	if len(s.sender.calls) != 1 || s.sender.calls[0] != [3]string{"a@x.com", "Alice", "River Restoration"} {
		t.Fatalf("unexpected sender calls: %v", s.sender.calls)
	}

	s.sender.err = errors.New("smtp down")
	rec, body = s.do(t, http.MethodPost, "/send-email", map[string]any{"email": "a@x.com"})
	expectStatus(t, rec, http.StatusInternalServerError)
	var got errorResponse
	decodeBody(t, body, &got)
	if got.Error != messageEmailSendFailed {
		t.Fatalf("unexpected error body: %+v", got)
	}
}

func TestRouter_Banner(t *testing.T) {
	s := newTestServer(t, ledger.PolicyStrict)

	rec, body := s.do(t, http.MethodGet, "/", nil)
	expectStatus(t, rec, http.StatusOK)
	if string(body) != bannerMessage {
		t.Fatalf("unexpected banner: %s", body)
	}

	rec, _ = s.do(t, http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)

	rec, body = s.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics endpoint did not expose collectors")
	}
}

// brokenCatalog はストア障害を模す。
type brokenCatalog struct {
	PostCatalog
}

func (brokenCatalog) Search(ctx context.Context, query string) ([]*post.Post, error) {
	return nil, errors.New("connection reset")
}

func TestPostHandler_StoreErrorIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	router := NewRouter(log, NewPostHandler(log, brokenCatalog{}), NewRequestHandler(log, nil), NewEmailHandler(log, nil))

	req := httptest.NewRequest(http.MethodGet, "/volunteer-posts?search=x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusInternalServerError)
	var got errorResponse
	decodeBody(t, rec.Body.Bytes(), &got)
	if got.Error != reasonInternalError {
		t.Fatalf("expected %q but got %q", reasonInternalError, got.Error)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d but got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("failed to decode body %s: %v", body, err)
	}
}

// stubSender は直接送信の呼び出しを記録する。
type stubSender struct {
	calls [][3]string
	err   error
}

func (s *stubSender) SendDirect(ctx context.Context, to, name, postTitle string) error {
	s.calls = append(s.calls, [3]string{to, name, postTitle})
	return s.err
}
