package memory

import (
	"context"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
)

/**
 * ストア全体を書き込みロックしたまま fn を実行し、エラー時は取り消し記録を逆順に戻す。
 */
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memTx はロック保持中のストアを直接書き換え、元に戻す手順を積んでおく。
type memTx struct {
	store *Store
	undo  []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) rememberPost(id post.ID) {
	prev, ok := t.store.posts[id]
	if !ok {
		t.undo = append(t.undo, func() { delete(t.store.posts, id) })
		return
	}
	snapshot := prev.clone()
	t.undo = append(t.undo, func() { t.store.posts[id] = snapshot })
}

func (t *memTx) rememberRequest(id request.ID) {
	prev, ok := t.store.requests[id]
	if !ok {
		t.undo = append(t.undo, func() { delete(t.store.requests, id) })
		return
	}
	snapshot := *prev
	t.undo = append(t.undo, func() { t.store.requests[id] = &snapshot })
}

func (t *memTx) GetPost(ctx context.Context, id post.ID) (*post.Post, error) {
	if err := parseID(string(id)); err != nil {
		return nil, err
	}
	rec, ok := t.store.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return restorePost(id, rec)
}

/**
 * 申請 ID の予約記録を見ながら募集人数を 1 件分だけ増減する。
 */
func (t *memTx) AdjustCapacity(ctx context.Context, adj repository.CapacityAdjustment) (*repository.UpdateResult, error) {
	if err := parseID(string(adj.PostID)); err != nil {
		// 存在し得ない投稿への参照は「対象なし」と同じ扱いにする
		return &repository.UpdateResult{}, nil
	}
	rec, ok := t.store.posts[adj.PostID]
	if !ok {
		return &repository.UpdateResult{}, nil
	}

	_, reserved := rec.reservedBy[adj.RequestID]
	if adj.IsReservation() {
		if reserved {
			return &repository.UpdateResult{Matched: 1}, nil
		}
		if adj.RequirePositive && rec.fields.VolunteersNeeded <= 0 {
			return nil, repository.ErrCapacityGuard
		}
	} else if !reserved {
		return &repository.UpdateResult{Matched: 1}, nil
	}

	t.rememberPost(adj.PostID)
	rec.fields.VolunteersNeeded += adj.Delta
	if adj.IsReservation() {
		rec.reservedBy[adj.RequestID] = struct{}{}
	} else {
		delete(rec.reservedBy, adj.RequestID)
	}
	return &repository.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (t *memTx) GetRequest(ctx context.Context, id request.ID) (*request.Request, error) {
	if err := parseID(string(id)); err != nil {
		return nil, err
	}
	rec, ok := t.store.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	return restoreRequest(id, rec)
}

func (t *memTx) InsertRequest(ctx context.Context, r *request.Request) (*repository.InsertResult, error) {
	id := request.ID(newID())
	t.rememberRequest(id)

	now := t.store.now()
	f := r.Fields()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	t.store.requests[id] = &requestRecord{
		seq:       t.store.nextSeq(),
		fields:    f,
		state:     r.State(),
		updatedAt: now,
	}
	return &repository.InsertResult{InsertedID: string(id)}, nil
}

func (t *memTx) SetRequestState(ctx context.Context, id request.ID, state request.State) (*repository.UpdateResult, error) {
	rec, ok := t.store.requests[id]
	if !ok {
		return &repository.UpdateResult{}, nil
	}
	if rec.state == state {
		return &repository.UpdateResult{Matched: 1}, nil
	}
	t.rememberRequest(id)
	rec.state = state
	rec.updatedAt = t.store.now()
	return &repository.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (t *memTx) DeleteRequest(ctx context.Context, id request.ID) (*repository.DeleteResult, error) {
	if _, ok := t.store.requests[id]; !ok {
		return &repository.DeleteResult{}, nil
	}
	t.rememberRequest(id)
	delete(t.store.requests, id)
	return &repository.DeleteResult{Deleted: 1}, nil
}
