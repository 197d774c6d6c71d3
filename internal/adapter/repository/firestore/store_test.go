package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

const testProjectID = "firestore-integration-test"

func TestValidateID(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{id: "AbCdEf0123456789wxyz"},
		{id: "", wantErr: true},
		{id: ".", wantErr: true},
		{id: "..", wantErr: true},
		{id: "a/b", wantErr: true},
		{id: "__reserved__", wantErr: true},
	}
	for _, tc := range cases {
		err := validateID(tc.id)
		if tc.wantErr {
			require.ErrorIs(t, err, repository.ErrInvalidID, tc.id)
		} else {
			require.NoError(t, err, tc.id)
		}
	}
}

func TestPostEntryUpdates(t *testing.T) {
	e := &postEntry{
		original: map[string]struct{}{"r-1": {}},
		reserved: map[string]struct{}{"r-1": {}, "r-2": {}},
		delta:    -1,
	}
	updates := e.updates()
	require.Len(t, updates, 2)
	require.Equal(t, post.FieldVolunteersNeeded, updates[0].Path)
	require.Equal(t, post.FieldReservedBy, updates[1].Path)

	// 変化が無ければ書き込みも無い
	e = &postEntry{
		original: map[string]struct{}{"r-1": {}},
		reserved: map[string]struct{}{"r-1": {}},
	}
	require.Empty(t, e.updates())

	// 追加と削除が混在するときは配列を丸ごと書く
	e = &postEntry{
		original: map[string]struct{}{"r-1": {}},
		reserved: map[string]struct{}{"r-2": {}},
	}
	updates = e.updates()
	require.Len(t, updates, 1)
	require.Equal(t, []string{"r-2"}, updates[0].Value)
}

func TestPatchUpdates(t *testing.T) {
	capacity := 3
	updates := patchUpdates(post.Patch{
		VolunteersNeeded: &capacity,
		Attributes:       map[string]any{"skills": "planting"},
	}.Changes())

	require.Len(t, updates, 2)
	require.Equal(t, post.FieldVolunteersNeeded, updates[0].Path)
	require.Equal(t, int64(3), updates[0].Value)
	require.Equal(t, firestore.FieldPath{"attributes", "skills"}, updates[1].FieldPath)
	require.Equal(t, "planting", updates[1].Value)
}

func TestPostDocument_CarriesAttributes(t *testing.T) {
	f := post.Fields{
		Title:      "River Restoration",
		Deadline:   time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Attributes: map[string]any{"skills": "planting"},
	}
	doc := newPostDocument(f)
	require.Equal(t, "planting", doc.Attributes["skills"])
	require.Equal(t, f.Attributes, doc.fields().Attributes)
}

func TestStore_PostCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Create(ctx, newTestPost(t, "Beach Cleanup Day", 3))
	require.NoError(t, err)
	id := post.ID(res.InsertedID)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Beach Cleanup Day", got.Title())
	require.Equal(t, 3, got.VolunteersNeeded())

	_, err = s.Create(ctx, newTestPost(t, "River Restoration", 2))
	require.NoError(t, err)

	found, err := s.SearchByTitle(ctx, "beach")
	require.NoError(t, err)
	require.Len(t, found, 1)

	upcoming, err := s.ListByDeadline(ctx, 6)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)

	title := "Beach Cleanup Week"
	upd, err := s.Update(ctx, id, post.Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, repository.UpdateResult{Matched: 1, Modified: 1}, *upd)

	upd, err = s.Update(ctx, id, post.Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, repository.UpdateResult{Matched: 1}, *upd)

	del, err := s.Delete(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), del.Deleted)

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, repository.ErrPostNotFound)

	del, err = s.Delete(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), del.Deleted)
}

func TestStore_TxReserveActivateCancel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Create(ctx, newTestPost(t, "Beach Cleanup Day", 1))
	require.NoError(t, err)
	postID := post.ID(res.InsertedID)

	var reqID request.ID
	err = s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := request.New(request.Fields{PostID: postID, VolunteerEmail: "a@x.com"})
		if err != nil {
			return err
		}
		ins, err := tx.InsertRequest(ctx, r)
		if err != nil {
			return err
		}
		reqID = request.ID(ins.InsertedID)
		adj := repository.CapacityAdjustment{PostID: postID, RequestID: reqID, Delta: -1, RequirePositive: true}
		if _, err := tx.AdjustCapacity(ctx, adj); err != nil {
			return err
		}
		// 同じ申請での再予約は変化なし
		again, err := tx.AdjustCapacity(ctx, adj)
		if err != nil {
			return err
		}
		require.Equal(t, int64(0), again.Modified)
		_, err = tx.SetRequestState(ctx, reqID, request.StateActive)
		return err
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, 0, got.VolunteersNeeded())

	mine, err := s.ListByVolunteer(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, request.StateActive, mine[0].State())

	// 残数 0 では別の申請の予約を拒否する
	err = s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.AdjustCapacity(ctx, repository.CapacityAdjustment{
			PostID: postID, RequestID: "other", Delta: -1, RequirePositive: true,
		})
		return err
	})
	require.True(t, errors.Is(err, repository.ErrCapacityGuard), "got %v", err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.SetRequestState(ctx, reqID, request.StateCancelling); err != nil {
			return err
		}
		if _, err := tx.AdjustCapacity(ctx, repository.CapacityAdjustment{PostID: postID, RequestID: reqID, Delta: 1}); err != nil {
			return err
		}
		_, err := tx.DeleteRequest(ctx, reqID)
		return err
	})
	require.NoError(t, err)

	got, err = s.Get(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, 1, got.VolunteersNeeded())

	stale, err := s.ListStale(ctx, []request.State{request.StatePending, request.StateCancelling}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, stale)
}

func newTestPost(t *testing.T, title string, capacity int) *post.Post {
	t.Helper()
	p, err := post.New(post.Fields{
		Title:            title,
		Deadline:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		OrganizerEmail:   "org@example.com",
		VolunteersNeeded: capacity,
	})
	require.NoError(t, err)
	return p
}

// newTestStore は Firestore エミュレータに接続し、コレクションを空にしたストアを返す。
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set; skipping Firestore store tests")
	}
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = testProjectID
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create firestore client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	truncateCollection(t, client, postsCollection)
	truncateCollection(t, client, requestsCollection)

	s, err := NewStore(client)
	require.NoError(t, err)
	return s
}

func truncateCollection(t *testing.T, client *firestore.Client, collection string) {
	t.Helper()
	ctx := context.Background()
	iter := client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			t.Fatalf("iterate %s: %v", collection, err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			t.Fatalf("delete doc %s: %v", doc.Ref.ID, err)
		}
	}
}
