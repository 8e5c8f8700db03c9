package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"cinelist/api"
	"cinelist/config"
	"cinelist/handlers"
	"cinelist/internal/auth"
	"cinelist/internal/database"
	"cinelist/services/metadata"
	"cinelist/services/recommend"
	"cinelist/services/watchlist"
	"cinelist/utils"
)

func main() {
	settingsPath := flag.String("config", envOr("CINELIST_CONFIG", "cinelist.json"), "path to the settings file")
	flag.Parse()

	manager := config.NewManager(*settingsPath)
	settings, err := manager.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   settings.Log.File,
			MaxSize:    settings.Log.MaxSizeMB,
			MaxBackups: settings.Log.MaxBackups,
			MaxAge:     settings.Log.MaxAgeDays,
			Compress:   true,
		}
		defer rotating.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	}

	if settings.Metadata.TMDBAPIKey == "" {
		log.Printf("[main] warning: TMDB_API_KEY is not set; catalog requests will fail")
	}

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var shared metadata.KeyStore
	if settings.Cache.RedisAddr != "" {
		store := metadata.NewRedisKeyStore(&redis.Options{
			Addr:     settings.Cache.RedisAddr,
			Password: settings.Cache.RedisPassword,
			DB:       settings.Cache.RedisDB,
		})
		defer store.Close()
		shared = store
		log.Printf("[main] trailer cache shared via redis at %s", settings.Cache.RedisAddr)
	}
	trailers := metadata.NewTrailerCache(settings.Cache.TrailerSize, settings.Cache.TrailerTTL(), shared)

	catalogService := metadata.NewService(metadata.Config{
		APIKey:            settings.Metadata.TMDBAPIKey,
		BaseURL:           settings.Metadata.BaseURL,
		Language:          settings.Metadata.Language,
		RequestsPerSecond: settings.Metadata.RequestsPerSecond,
		IngestWorkers:     settings.Metadata.IngestWorkers,
	}, db.Catalog, trailers)
	defer catalogService.Close()

	watchlistService := watchlist.NewService(db.Catalog, db.Watchlist, watchlist.Options{
		StrictTransitions: settings.Watchlist.StrictTransitions,
	})

	var completer recommend.Completer
	if settings.Recommend.OpenAIAPIKey != "" {
		completer = recommend.NewOpenAICompleter(settings.Recommend.OpenAIAPIKey, settings.Recommend.BaseURL, settings.Recommend.Model)
	} else {
		log.Printf("[main] OPENAI_API_KEY not set; recommendations use the fallback text")
	}
	recommendService := recommend.NewService(db.Catalog, db.Watchlist, completer)

	var userAuth func(http.Handler) http.Handler
	if settings.Auth.Required || settings.Auth.JWTSecret != "" {
		userAuth = api.BearerAuthMiddleware(auth.JWT{
			Secret:   []byte(settings.Auth.JWTSecret),
			TokenTTL: settings.Auth.TokenTTL(),
		})
		log.Printf("[main] bearer authentication enabled for user routes")
	}

	limiter := api.NewIPRateLimiter(rate.Limit(settings.Server.RateLimitPerSec), settings.Server.RateLimitBurst)
	defer limiter.Close()

	router := utils.NewRouter(utils.CORSPolicy{Origins: settings.Server.CORSOrigins})
	router.Use(limiter.Middleware())
	handlers.Register(router,
		handlers.NewCatalogHandler(catalogService),
		handlers.NewWatchlistHandler(watchlistService),
		handlers.NewRecommendHandler(recommendService),
		userAuth,
	)

	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[main] listening on %s", settings.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	timeout := settings.Server.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
