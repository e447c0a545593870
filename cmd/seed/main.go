package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"maskan/internal/cache"
	"maskan/internal/config"
	"maskan/internal/db"
	"maskan/internal/logger"
	"maskan/internal/model"
	"maskan/internal/repository"
	"maskan/internal/service"
)

const fetchTimeout = 30 * time.Second

func main() {
	owner := flag.String("owner", "", "email of the existing user who will own the imported listings")
	source := flag.String("source", "listings.json", "path or http(s) URL of a JSON array of listings")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *owner == "" {
		log.Fatal("owner email is required (-owner)")
	}

	ctx := context.Background()

	mongoClient, mongoDB, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	log.Info("connected to database", zap.String("database", cfg.MongoDatabase))

	if err := repository.EnsureListingIndexes(ctx, mongoDB); err != nil {
		log.Fatal("ensure indexes", zap.Error(err))
	}

	tx := repository.NewDirectTransactor()
	if cfg.MongoTransactions {
		tx = repository.NewMongoTransactor(mongoClient)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()

	userRepo := repository.NewUserRepository(mongoDB)
	listingService := service.NewListingService(
		repository.NewListingRepository(mongoDB),
		userRepo,
		tx,
		nil,
		cacheClient,
		service.ListingServiceConfig{CacheTTL: cfg.ListingCacheTTL, MaxImages: cfg.UploadMaxImages},
		log,
	)

	user, err := userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(*owner)))
	if err != nil {
		log.Fatal("find owner", zap.String("owner", logger.MaskEmail(*owner)), zap.Error(err))
	}

	log.Info("fetching listings", zap.String("source", *source))
	listings, err := fetchListings(ctx, *source)
	if err != nil {
		log.Fatal("fetch listings", zap.Error(err))
	}
	log.Info("fetched listings", zap.Int("count", len(listings)))

	imported, skipped := seedListings(ctx, listingService, user, listings, log)

	// Refresh the owner before reconciling so the index reflects the imports.
	if user, err = userRepo.FindByID(ctx, user.ID); err != nil {
		log.Fatal("reload owner", zap.Error(err))
	}
	owned, err := listingService.ListByOwner(ctx, user)
	if err != nil {
		log.Fatal("reconcile owner listings", zap.Error(err))
	}

	log.Info("seed completed",
		zap.Int("imported", imported),
		zap.Int("skipped", skipped),
		zap.Int("owned", len(owned)),
	)
}

// fetchListings reads a JSON array of listings from a file or URL.
func fetchListings(ctx context.Context, source string) ([]model.Listing, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("source returned status code: %d", resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", source, err)
		}
		body = f
	}
	defer body.Close()

	var listings []model.Listing
	if err := json.NewDecoder(body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}
	return listings, nil
}

// seedListings imports each listing for owner. Invalid entries are logged and
// skipped.
func seedListings(ctx context.Context, svc service.ListingService, owner *model.User, listings []model.Listing, log *zap.Logger) (imported, skipped int) {
	for i, l := range listings {
		created, err := svc.Import(ctx, owner, l)
		if err != nil {
			log.Warn("skipping listing", zap.Int("index", i), zap.String("title", l.Title), zap.Error(err))
			skipped++
			continue
		}
		log.Debug("listing imported", zap.String("listing_id", created.ID.Hex()))
		imported++
	}
	return imported, skipped
}
