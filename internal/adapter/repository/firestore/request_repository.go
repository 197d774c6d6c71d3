package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

func (s *Store) ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error) {
	query := s.client.Collection(s.requests).Where(request.FieldVolunteerEmail, "==", email)
	return s.collectRequests(query.Documents(ctx), nil)
}

/**
 * 状態ごとに等価検索し、更新時刻はクライアント側で絞る。
 * 状態と更新時刻の複合インデックスを要求しないための形。
 */
func (s *Store) ListStale(ctx context.Context, states []request.State, before time.Time) ([]*request.Request, error) {
	var result []*request.Request
	for _, st := range states {
		query := s.client.Collection(s.requests).Where(request.FieldState, "==", string(st))
		list, err := s.collectRequests(query.Documents(ctx), func(d requestDocument) bool {
			return d.UpdatedAt.Before(before)
		})
		if err != nil {
			return nil, err
		}
		result = append(result, list...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	return result, nil
}

func (s *Store) collectRequests(iter *firestore.DocumentIterator, keep func(requestDocument) bool) ([]*request.Request, error) {
	defer iter.Stop()

	list := make([]*request.Request, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, Error.New("iterate requests: %v", err)
		}
		r, payload, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(payload) {
			list = append(list, r)
		}
	}
	return list, nil
}
