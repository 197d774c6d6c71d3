package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"github.com/google/uuid"
)

type postRecord struct {
	seq        int64
	fields     post.Fields
	reservedBy map[request.ID]struct{}
}

func (r *postRecord) clone() *postRecord {
	cp := *r
	cp.reservedBy = make(map[request.ID]struct{}, len(r.reservedBy))
	for id := range r.reservedBy {
		cp.reservedBy[id] = struct{}{}
	}
	return &cp
}

type requestRecord struct {
	seq       int64
	fields    request.Fields
	state     request.State
	updatedAt time.Time
}

// メモリ常駐版のストア。投稿と申請を 1 つのロックで守り、トランザクションは直列に実行する。
type Store struct {
	mu       sync.RWMutex
	seq      int64
	posts    map[post.ID]*postRecord
	requests map[request.ID]*requestRecord
	now      func() time.Time
}

/**
 * 初期化済みマップを持つメモリストアを返す。
 */
func NewStore() *Store {
	return &Store{
		posts:    make(map[post.ID]*postRecord),
		requests: make(map[request.ID]*requestRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close は互換性のためだけに存在する。
func (s *Store) Close() error {
	return nil
}

// Atomic はメモリストアが全操作をロック下で行うため常に真。
func (s *Store) Atomic() bool {
	return true
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func newID() string {
	return uuid.NewString()
}

// parseID は UUID 形式でない ID を ErrInvalidID として弾く。
func parseID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrInvalidID
	}
	return nil
}

func restorePost(id post.ID, rec *postRecord) (*post.Post, error) {
	return post.Restore(id, rec.fields)
}

func restoreRequest(id request.ID, rec *requestRecord) (*request.Request, error) {
	f := rec.fields
	f.UpdatedAt = rec.updatedAt
	return request.Restore(id, f, rec.state)
}

func (s *Store) sortedPosts(filter func(*postRecord) bool, less func(a, b *postRecord) bool) []post.ID {
	ids := make([]post.ID, 0, len(s.posts))
	for id, rec := range s.posts {
		if filter == nil || filter(rec) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return less(s.posts[ids[i]], s.posts[ids[j]])
	})
	return ids
}

func bySeq(a, b *postRecord) bool {
	return a.seq < b.seq
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*memTx)(nil)
)
