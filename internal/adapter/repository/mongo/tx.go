package mongo

import (
	"context"
	"errors"
	"slices"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTx は RunInTx から渡された ctx（セッション付きの場合あり）で各操作を発行する。
type mongoTx struct {
	store *Store
}

func (t *mongoTx) GetPost(ctx context.Context, id post.ID) (*post.Post, error) {
	return t.store.Get(ctx, id)
}

/**
 * 条件付き更新 1 回で席数と予約済み集合を同時に書き換える。
 * 一致しなかった場合だけ読み直し、対象なし・変化なし・残数不足を区別する。
 */
func (t *mongoTx) AdjustCapacity(ctx context.Context, adj repository.CapacityAdjustment) (*repository.UpdateResult, error) {
	oid, err := objectID(string(adj.PostID))
	if err != nil {
		return &repository.UpdateResult{}, nil
	}
	rid := string(adj.RequestID)

	filter := bson.M{"_id": oid}
	var update bson.M
	if adj.IsReservation() {
		filter[post.FieldReservedBy] = bson.M{"$ne": rid}
		if adj.RequirePositive {
			filter[post.FieldVolunteersNeeded] = bson.M{"$gt": 0}
		}
		update = bson.M{
			"$inc":      bson.M{post.FieldVolunteersNeeded: adj.Delta},
			"$addToSet": bson.M{post.FieldReservedBy: rid},
		}
	} else {
		filter[post.FieldReservedBy] = rid
		update = bson.M{
			"$inc":  bson.M{post.FieldVolunteersNeeded: adj.Delta},
			"$pull": bson.M{post.FieldReservedBy: rid},
		}
	}

	res, err := t.store.posts.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, Error.New("adjust capacity: %v", err)
	}
	if res.MatchedCount > 0 {
		return &repository.UpdateResult{Matched: 1, Modified: res.ModifiedCount}, nil
	}

	var doc postDocument
	opts := options.FindOne().SetProjection(bson.M{post.FieldReservedBy: 1, post.FieldVolunteersNeeded: 1})
	err = t.store.posts.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return classifyUnmatched(nil, adj)
	}
	if err != nil {
		return nil, Error.New("reload post: %v", err)
	}
	return classifyUnmatched(&doc, adj)
}

/**
 * 条件付き更新が一致しなかった理由を読み直した投稿から判定する。
 * doc が nil なら投稿なし（一致 0）。予約済みの予約と返却済みの返却は変化なし。
 * 未予約なのに予約できなかった場合は残数不足。
 */
func classifyUnmatched(doc *postDocument, adj repository.CapacityAdjustment) (*repository.UpdateResult, error) {
	if doc == nil {
		return &repository.UpdateResult{}, nil
	}
	reserved := slices.Contains(doc.ReservedBy, string(adj.RequestID))
	if adj.IsReservation() && !reserved {
		return nil, repository.ErrCapacityGuard
	}
	return &repository.UpdateResult{Matched: 1}, nil
}

func (t *mongoTx) GetRequest(ctx context.Context, id request.ID) (*request.Request, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return nil, err
	}
	var doc requestDocument
	err = t.store.requests.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrRequestNotFound
	}
	if err != nil {
		return nil, Error.New("find request: %v", err)
	}
	return doc.restore()
}

func (t *mongoTx) InsertRequest(ctx context.Context, r *request.Request) (*repository.InsertResult, error) {
	res, err := t.store.requests.InsertOne(ctx, newRequestDocument(r, t.store.now()))
	if err != nil {
		return nil, Error.New("insert request: %v", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, Error.New("unexpected inserted id %v", res.InsertedID)
	}
	return &repository.InsertResult{InsertedID: oid.Hex()}, nil
}

func (t *mongoTx) SetRequestState(ctx context.Context, id request.ID, state request.State) (*repository.UpdateResult, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return &repository.UpdateResult{}, nil
	}
	res, err := t.store.requests.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		request.FieldState:     string(state),
		request.FieldUpdatedAt: t.store.now(),
	}})
	if err != nil {
		return nil, Error.New("update request state: %v", err)
	}
	return &repository.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (t *mongoTx) DeleteRequest(ctx context.Context, id request.ID) (*repository.DeleteResult, error) {
	oid, err := objectID(string(id))
	if err != nil {
		return &repository.DeleteResult{}, nil
	}
	res, err := t.store.requests.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, Error.New("delete request: %v", err)
	}
	return &repository.DeleteResult{Deleted: res.DeletedCount}, nil
}
