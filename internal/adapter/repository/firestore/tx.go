package firestore

import (
	"context"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

/**
 * Firestore トランザクション内で fn を実行する。
 * Firestore は書き込み後の読み取りを許さないため、fn の間は書き込みを手元に溜め、
 * fn が成功した時点でまとめて反映する。競合時は fn ごと再実行される。
 */
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		tx := &firestoreTx{
			store:    s,
			tx:       ftx,
			posts:    make(map[post.ID]*postEntry),
			requests: make(map[request.ID]*requestEntry),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.flush()
	}, firestore.MaxAttempts(txMaxAttempts))
}

// postEntry はトランザクション中に読んだ投稿と、溜めている席の増減。
type postEntry struct {
	ref      *firestore.DocumentRef
	exists   bool
	doc      postDocument
	original map[string]struct{}
	reserved map[string]struct{}
	delta    int64
}

// requestEntry はトランザクション中に読んだ（または作った）申請。
type requestEntry struct {
	ref     *firestore.DocumentRef
	exists  bool
	doc     requestDocument
	created bool
	deleted bool
	dirty   bool
}

type firestoreTx struct {
	store        *Store
	tx           *firestore.Transaction
	posts        map[post.ID]*postEntry
	postOrder    []post.ID
	requests     map[request.ID]*requestEntry
	requestOrder []request.ID
}

func (t *firestoreTx) loadPost(id post.ID) (*postEntry, error) {
	if e, ok := t.posts[id]; ok {
		return e, nil
	}
	ref := t.store.postRef(id)
	e := &postEntry{ref: ref}
	snap, err := t.tx.Get(ref)
	switch {
	case status.Code(err) == codes.NotFound:
	case err != nil:
		return nil, err
	default:
		if err := snap.DataTo(&e.doc); err != nil {
			return nil, Error.New("decode post document %s: %v", ref.ID, err)
		}
		e.exists = true
		e.original = make(map[string]struct{}, len(e.doc.ReservedBy))
		e.reserved = make(map[string]struct{}, len(e.doc.ReservedBy))
		for _, rid := range e.doc.ReservedBy {
			e.original[rid] = struct{}{}
			e.reserved[rid] = struct{}{}
		}
	}
	t.posts[id] = e
	t.postOrder = append(t.postOrder, id)
	return e, nil
}

func (t *firestoreTx) loadRequest(id request.ID) (*requestEntry, error) {
	if e, ok := t.requests[id]; ok {
		return e, nil
	}
	ref := t.store.requestRef(id)
	e := &requestEntry{ref: ref}
	snap, err := t.tx.Get(ref)
	switch {
	case status.Code(err) == codes.NotFound:
	case err != nil:
		return nil, err
	default:
		if err := snap.DataTo(&e.doc); err != nil {
			return nil, Error.New("decode request document %s: %v", ref.ID, err)
		}
		e.exists = true
	}
	t.requests[id] = e
	t.requestOrder = append(t.requestOrder, id)
	return e, nil
}

func (t *firestoreTx) GetPost(ctx context.Context, id post.ID) (*post.Post, error) {
	if err := validateID(string(id)); err != nil {
		return nil, err
	}
	e, err := t.loadPost(id)
	if err != nil {
		return nil, err
	}
	if !e.exists {
		return nil, repository.ErrPostNotFound
	}
	f := e.doc.fields()
	f.VolunteersNeeded += int(e.delta)
	p, err := post.Restore(id, f)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return p, nil
}

/**
 * 予約済み集合を見て増減を判定し、反映は flush で Increment と配列操作として書く。
 */
func (t *firestoreTx) AdjustCapacity(ctx context.Context, adj repository.CapacityAdjustment) (*repository.UpdateResult, error) {
	if validateID(string(adj.PostID)) != nil {
		return &repository.UpdateResult{}, nil
	}
	e, err := t.loadPost(adj.PostID)
	if err != nil {
		return nil, err
	}
	if !e.exists {
		return &repository.UpdateResult{}, nil
	}

	rid := string(adj.RequestID)
	_, reserved := e.reserved[rid]
	if adj.IsReservation() {
		if reserved {
			return &repository.UpdateResult{Matched: 1}, nil
		}
		if adj.RequirePositive && e.doc.VolunteersNeeded+e.delta <= 0 {
			return nil, repository.ErrCapacityGuard
		}
		e.reserved[rid] = struct{}{}
	} else {
		if !reserved {
			return &repository.UpdateResult{Matched: 1}, nil
		}
		delete(e.reserved, rid)
	}
	e.delta += int64(adj.Delta)
	return &repository.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (t *firestoreTx) GetRequest(ctx context.Context, id request.ID) (*request.Request, error) {
	if err := validateID(string(id)); err != nil {
		return nil, err
	}
	e, err := t.loadRequest(id)
	if err != nil {
		return nil, err
	}
	if !e.exists || e.deleted {
		return nil, repository.ErrRequestNotFound
	}
	return e.doc.restore(string(id))
}

func (t *firestoreTx) InsertRequest(ctx context.Context, r *request.Request) (*repository.InsertResult, error) {
	ref := t.store.client.Collection(t.store.requests).NewDoc()
	id := request.ID(ref.ID)
	t.requests[id] = &requestEntry{
		ref:     ref,
		exists:  true,
		created: true,
		doc:     newRequestDocument(r, t.store.now()),
	}
	t.requestOrder = append(t.requestOrder, id)
	return &repository.InsertResult{InsertedID: ref.ID}, nil
}

func (t *firestoreTx) SetRequestState(ctx context.Context, id request.ID, state request.State) (*repository.UpdateResult, error) {
	if validateID(string(id)) != nil {
		return &repository.UpdateResult{}, nil
	}
	e, err := t.loadRequest(id)
	if err != nil {
		return nil, err
	}
	if !e.exists || e.deleted {
		return &repository.UpdateResult{}, nil
	}
	if e.doc.State == string(state) {
		return &repository.UpdateResult{Matched: 1}, nil
	}
	e.doc.State = string(state)
	e.doc.UpdatedAt = t.store.now()
	e.dirty = true
	return &repository.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (t *firestoreTx) DeleteRequest(ctx context.Context, id request.ID) (*repository.DeleteResult, error) {
	if validateID(string(id)) != nil {
		return &repository.DeleteResult{}, nil
	}
	e, err := t.loadRequest(id)
	if err != nil {
		return nil, err
	}
	if !e.exists || e.deleted {
		return &repository.DeleteResult{}, nil
	}
	e.deleted = true
	return &repository.DeleteResult{Deleted: 1}, nil
}

// flush は溜めた書き込みを読み込み順にトランザクションへ積む。
func (t *firestoreTx) flush() error {
	for _, id := range t.postOrder {
		e := t.posts[id]
		if !e.exists {
			continue
		}
		if updates := e.updates(); len(updates) > 0 {
			if err := t.tx.Update(e.ref, updates); err != nil {
				return err
			}
		}
	}
	for _, id := range t.requestOrder {
		e := t.requests[id]
		var err error
		switch {
		case e.created && e.deleted:
		case e.created:
			err = t.tx.Create(e.ref, e.doc)
		case e.deleted:
			err = t.tx.Delete(e.ref)
		case e.dirty:
			err = t.tx.Update(e.ref, []firestore.Update{
				{Path: request.FieldState, Value: e.doc.State},
				{Path: request.FieldUpdatedAt, Value: e.doc.UpdatedAt},
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

/**
 * 席数は Increment、予約済み集合は ArrayUnion/ArrayRemove で差分だけ書く。
 * 同じトランザクションで追加と削除が両方ある場合は配列を丸ごと置き換える。
 */
func (e *postEntry) updates() []firestore.Update {
	var added, removed []any
	for rid := range e.reserved {
		if _, ok := e.original[rid]; !ok {
			added = append(added, rid)
		}
	}
	for rid := range e.original {
		if _, ok := e.reserved[rid]; !ok {
			removed = append(removed, rid)
		}
	}

	var updates []firestore.Update
	if e.delta != 0 {
		updates = append(updates, firestore.Update{Path: post.FieldVolunteersNeeded, Value: firestore.Increment(e.delta)})
	}
	switch {
	case len(added) > 0 && len(removed) > 0:
		all := make([]string, 0, len(e.reserved))
		for rid := range e.reserved {
			all = append(all, rid)
		}
		updates = append(updates, firestore.Update{Path: post.FieldReservedBy, Value: all})
	case len(added) > 0:
		updates = append(updates, firestore.Update{Path: post.FieldReservedBy, Value: firestore.ArrayUnion(added...)})
	case len(removed) > 0:
		updates = append(updates, firestore.Update{Path: post.FieldReservedBy, Value: firestore.ArrayRemove(removed...)})
	}
	return updates
}
