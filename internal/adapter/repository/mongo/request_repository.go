package mongo

import (
	"context"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error) {
	return s.findRequests(ctx, bson.M{request.FieldVolunteerEmail: email})
}

func (s *Store) ListStale(ctx context.Context, states []request.State, before time.Time) ([]*request.Request, error) {
	names := make([]string, 0, len(states))
	for _, st := range states {
		names = append(names, string(st))
	}
	return s.findRequests(ctx, bson.M{
		request.FieldState:     bson.M{"$in": names},
		request.FieldUpdatedAt: bson.M{"$lt": before.UTC()},
	})
}

func (s *Store) findRequests(ctx context.Context, filter bson.M) ([]*request.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.requests.Find(ctx, filter, opts)
	if err != nil {
		return nil, Error.New("find requests: %v", err)
	}
	var docs []requestDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, Error.New("decode requests: %v", err)
	}

	list := make([]*request.Request, 0, len(docs))
	for _, d := range docs {
		r, err := d.restore()
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, nil
}
