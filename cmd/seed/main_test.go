package main

import (
	"context"
	"errors"
	"testing"

	"github.com/souravMitra02/volunteer-project-server/internal/adapter/repository/memory"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"

	"go.uber.org/zap/zaptest"
)

func TestSeedPosts_StoresSamples(t *testing.T) {
	store := memory.NewStore()
	catalog := postusecase.NewCatalog(zaptest.NewLogger(t), store)

	ids, err := seedPosts(context.Background(), catalog, samplePosts)
	if err != nil {
		t.Fatalf("seedPosts returned error: %v", err)
	}
	if len(ids) != len(samplePosts) {
		t.Fatalf("expected %d ids but got %d", len(samplePosts), len(ids))
	}

	found, err := catalog.Search(context.Background(), "beach")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 1 || found[0].Title() != "Beach Cleanup Day" {
		t.Fatalf("unexpected search result: %v", found)
	}
}

type failingCreator struct{}

func (failingCreator) Create(context.Context, *postusecase.CreateInput) (*repository.InsertResult, error) {
	return nil, errors.New("store down")
}

func TestSeedPosts_Error(t *testing.T) {
	if _, err := seedPosts(context.Background(), failingCreator{}, samplePosts); err == nil {
		t.Fatalf("expected error when create fails")
	}
}
