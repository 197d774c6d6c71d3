package memory

import (
	"context"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
)

/**
 * 新しい UUID を採番して投稿を格納する。
 */
func (s *Store) Create(ctx context.Context, p *post.Post) (*repository.InsertResult, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := post.ID(newID())
	s.posts[id] = &postRecord{
		seq:        s.nextSeq(),
		fields:     p.Fields(),
		reservedBy: make(map[request.ID]struct{}),
	}
	return &repository.InsertResult{InsertedID: string(id)}, nil
}

/**
 * ID で検索し、存在しなければ NotFound を返す。
 */
func (s *Store) Get(ctx context.Context, id post.ID) (*post.Post, error) {
	if err := parseID(string(id)); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return restorePost(id, rec)
}

func (s *Store) ListByDeadline(ctx context.Context, limit int) ([]*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedPosts(nil, func(a, b *postRecord) bool {
		if a.fields.Deadline.Equal(b.fields.Deadline) {
			return a.seq < b.seq
		}
		return a.fields.Deadline.Before(b.fields.Deadline)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return s.collect(ids)
}

func (s *Store) SearchByTitle(ctx context.Context, query string) ([]*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedPosts(func(rec *postRecord) bool {
		return post.TitleMatches(rec.fields.Title, query)
	}, bySeq)
	return s.collect(ids)
}

func (s *Store) ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedPosts(func(rec *postRecord) bool {
		return rec.fields.OrganizerEmail == email
	}, bySeq)
	return s.collect(ids)
}

/**
 * 指定項目のみ上書きする。未登録なら Matched 0 を返す。
 */
func (s *Store) Update(ctx context.Context, id post.ID, patch post.Patch) (*repository.UpdateResult, error) {
	if err := parseID(string(id)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.posts[id]
	if !ok {
		return &repository.UpdateResult{}, nil
	}
	p, err := restorePost(id, rec)
	if err != nil {
		return nil, err
	}
	res := &repository.UpdateResult{Matched: 1}
	if p.Apply(patch) {
		rec.fields = p.Fields()
		res.Modified = 1
	}
	return res, nil
}

func (s *Store) Delete(ctx context.Context, id post.ID) (*repository.DeleteResult, error) {
	if err := parseID(string(id)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return &repository.DeleteResult{}, nil
	}
	delete(s.posts, id)
	return &repository.DeleteResult{Deleted: 1}, nil
}

func (s *Store) collect(ids []post.ID) ([]*post.Post, error) {
	result := make([]*post.Post, 0, len(ids))
	for _, id := range ids {
		p, err := restorePost(id, s.posts[id])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}
