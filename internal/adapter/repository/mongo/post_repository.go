package mongo

import (
	"context"
	"errors"
	"regexp"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) Create(ctx context.Context, p *post.Post) (*repository.InsertResult, error) {
	res, err := s.posts.InsertOne(ctx, newPostDocument(p.Fields()))
	if err != nil {
		return nil, Error.New("insert post: %v", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, Error.New("unexpected inserted id %v", res.InsertedID)
	}
	return &repository.InsertResult{InsertedID: oid.Hex()}, nil
}

func (s *Store) Get(ctx context.Context, id post.ID) (*post.Post, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return nil, err
	}
	var doc postDocument
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, Error.New("find post: %v", err)
	}
	return doc.restore()
}

// ListByDeadline は締切昇順で最大 limit 件。
func (s *Store) ListByDeadline(ctx context.Context, limit int) ([]*post.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: post.FieldDeadline, Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findPosts(ctx, bson.M{}, opts)
}

/**
 * 入力をエスケープした上で大文字小文字を無視した正規表現で部分一致検索する。
 */
func (s *Store) SearchByTitle(ctx context.Context, query string) ([]*post.Post, error) {
	filter := bson.M{}
	if query != "" {
		filter[post.FieldTitle] = primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	}
	return s.findPosts(ctx, filter, options.Find())
}

func (s *Store) ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error) {
	return s.findPosts(ctx, bson.M{post.FieldOrganizerEmail: email}, options.Find())
}

// Update は与えられた項目だけを $set する。
func (s *Store) Update(ctx context.Context, id post.ID, patch post.Patch) (*repository.UpdateResult, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	for _, c := range patch.Changes() {
		set[c.Field] = c.Value
	}
	if len(set) == 0 {
		return nil, post.ErrEmptyPatch
	}
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, Error.New("update post: %v", err)
	}
	return &repository.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Store) Delete(ctx context.Context, id post.ID) (*repository.DeleteResult, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return nil, err
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, Error.New("delete post: %v", err)
	}
	return &repository.DeleteResult{Deleted: res.DeletedCount}, nil
}

/**
 * 旧サーバーが文字列で保存した締切と募集人数を日時と整数へ揃え、書き換えた件数を返す。
 * 席数の $inc は数値の項目にしか適用できない。
 */
func (s *Store) NormalizeLegacyPosts(ctx context.Context) (int64, error) {
	res, err := s.posts.UpdateMany(ctx, legacyPostsFilter(), legacyPostsPipeline())
	if err != nil {
		return 0, Error.New("normalize legacy posts: %v", err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) findPosts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*post.Post, error) {
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, Error.New("find posts: %v", err)
	}
	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, Error.New("decode posts: %v", err)
	}

	posts := make([]*post.Post, 0, len(docs))
	for _, d := range docs {
		p, err := d.restore()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}
