package firestore

import (
	"context"
	"errors"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

/**
 * 自動採番のドキュメントとして投稿を保存する。
 */
func (s *Store) Create(ctx context.Context, p *post.Post) (*repository.InsertResult, error) {
	ref := s.client.Collection(s.posts).NewDoc()
	if _, err := ref.Create(ctx, newPostDocument(p.Fields())); err != nil {
		return nil, Error.New("create post document: %v", err)
	}
	return &repository.InsertResult{InsertedID: ref.ID}, nil
}

// Get は指定 ID の投稿を取得する。
func (s *Store) Get(ctx context.Context, id post.ID) (*post.Post, error) {
	if err := validateID(string(id)); err != nil {
		return nil, err
	}
	doc, err := s.postRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrPostNotFound
		}
		return nil, Error.New("get post document: %v", err)
	}
	p, _, err := decodePost(doc)
	return p, err
}

// ListByDeadline は締切の早い順に最大 limit 件を返す。
func (s *Store) ListByDeadline(ctx context.Context, limit int) ([]*post.Post, error) {
	query := s.client.Collection(s.posts).OrderBy(post.FieldDeadline, firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.collectPosts(query.Documents(ctx), nil)
}

/**
 * Firestore には部分一致検索が無いため、全件を走査してタイトルで絞り込む。
 */
func (s *Store) SearchByTitle(ctx context.Context, query string) ([]*post.Post, error) {
	return s.collectPosts(s.client.Collection(s.posts).Documents(ctx), func(p *post.Post) bool {
		return p.MatchesTitle(query)
	})
}

func (s *Store) ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error) {
	query := s.client.Collection(s.posts).Where(post.FieldOrganizerEmail, "==", email)
	return s.collectPosts(query.Documents(ctx), nil)
}

/**
 * 既存ドキュメントを読み、値が変わる項目があるときだけ書き込む。
 */
func (s *Store) Update(ctx context.Context, id post.ID, patch post.Patch) (*repository.UpdateResult, error) {
	if err := validateID(string(id)); err != nil {
		return nil, err
	}
	ref := s.postRef(id)
	var res repository.UpdateResult
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		res = repository.UpdateResult{}
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		p, _, err := decodePost(doc)
		if err != nil {
			return err
		}
		res.Matched = 1
		if !p.Apply(patch) {
			return nil
		}
		res.Modified = 1

		return tx.Update(ref, patchUpdates(patch.Changes()))
	}, firestore.MaxAttempts(txMaxAttempts))
	if err != nil {
		return nil, Error.New("update post document: %v", err)
	}
	return &res, nil
}

// Delete は投稿を削除する。申請ドキュメントには触れない。
func (s *Store) Delete(ctx context.Context, id post.ID) (*repository.DeleteResult, error) {
	if err := validateID(string(id)); err != nil {
		return nil, err
	}
	_, err := s.postRef(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return &repository.DeleteResult{}, nil
	}
	if err != nil {
		return nil, Error.New("delete post document: %v", err)
	}
	return &repository.DeleteResult{Deleted: 1}, nil
}

func (s *Store) collectPosts(iter *firestore.DocumentIterator, keep func(*post.Post) bool) ([]*post.Post, error) {
	defer iter.Stop()

	posts := make([]*post.Post, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, Error.New("iterate posts: %v", err)
		}
		p, _, err := decodePost(doc)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(p) {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// patchUpdates はパッチを Firestore の更新一覧にする。追加項目は attributes の下に書く。
func patchUpdates(changes []post.Change) []firestore.Update {
	updates := make([]firestore.Update, 0, len(changes))
	for _, c := range changes {
		value := c.Value
		if n, ok := value.(int); ok {
			value = int64(n)
		}
		if c.Attribute {
			updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"attributes", c.Field}, Value: value})
			continue
		}
		updates = append(updates, firestore.Update{Path: c.Field, Value: value})
	}
	return updates
}
