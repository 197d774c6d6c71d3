package memory

import (
	"context"
	"sort"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
)

func (s *Store) ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectRequests(func(rec *requestRecord) bool {
		return rec.fields.VolunteerEmail == email
	})
}

/**
 * 指定状態のまま before より前から動いていない申請を返す。
 */
func (s *Store) ListStale(ctx context.Context, states []request.State, before time.Time) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[request.State]struct{}, len(states))
	for _, st := range states {
		wanted[st] = struct{}{}
	}
	return s.collectRequests(func(rec *requestRecord) bool {
		if _, ok := wanted[rec.state]; !ok {
			return false
		}
		return rec.updatedAt.Before(before)
	})
}

func (s *Store) collectRequests(filter func(*requestRecord) bool) ([]*request.Request, error) {
	ids := make([]request.ID, 0)
	for id, rec := range s.requests {
		if filter(rec) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.requests[ids[i]].seq < s.requests[ids[j]].seq
	})

	result := make([]*request.Request, 0, len(ids))
	for _, id := range ids {
		r, err := restoreRequest(id, s.requests[id])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}
