package main

import (
	"context"
	"fmt"
	"log"

	"github.com/souravMitra02/volunteer-project-server/internal/app"
	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"

	"go.uber.org/zap"
)

// samplePosts は開発環境へ投入する募集投稿。
var samplePosts = []postusecase.CreateInput{
	{
		Title:            "Beach Cleanup Day",
		Deadline:         "2025-06-01",
		OrganizerEmail:   "organizer@volunteerhub.example",
		OrganizerName:    "Volunteer Hub",
		VolunteersNeeded: 5,
		Description:      "Help us collect plastic and debris along the shoreline.",
		Category:         "environment",
		Location:         "Cox's Bazar",
	},
	{
		Title:            "River Restoration",
		Deadline:         "2025-06-15",
		OrganizerEmail:   "organizer@volunteerhub.example",
		OrganizerName:    "Volunteer Hub",
		VolunteersNeeded: 8,
		Description:      "Plant native trees and clear invasive weeds on the riverbank.",
		Category:         "environment",
		Location:         "Sylhet",
	},
	{
		Title:            "Community Food Drive",
		Deadline:         "2025-07-01",
		OrganizerEmail:   "pantry@volunteerhub.example",
		VolunteersNeeded: 12,
		Description:      "Sort and pack donations for local families.",
		Category:         "social service",
		Location:         "Dhaka",
	},
}

// postCreator は投稿を 1 件保存する。
type postCreator interface {
	Create(ctx context.Context, in *postusecase.CreateInput) (*repository.InsertResult, error)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("%v", err)
	}
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := app.NewLogger(serverCfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	container, err := app.NewContainer(ctx, logger)
	if err != nil {
		logger.Fatal("init container", zap.Error(err))
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Warn("close container", zap.Error(err))
		}
	}()

	ids, err := seedPosts(ctx, container.Catalog, samplePosts)
	if err != nil {
		logger.Error("seed posts", zap.Error(err))
		return
	}
	logger.Info("seeding completed", zap.Strings("post_ids", ids))
}

// seedPosts は投稿を順に保存し、採番された ID を返す。
func seedPosts(ctx context.Context, creator postCreator, posts []postusecase.CreateInput) ([]string, error) {
	ids := make([]string, 0, len(posts))
	// 1件ずつ取り出して処理する
	for i := range posts {
		res, err := creator.Create(ctx, &posts[i])
		if err != nil {
			return ids, fmt.Errorf("create %q: %w", posts[i].Title, err)
		}
		ids = append(ids, res.InsertedID)
	}
	return ids, nil
}
