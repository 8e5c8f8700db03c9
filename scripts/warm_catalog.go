package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"cinelist/internal/database"
	"cinelist/services/metadata"
)

// Fetches full details for a list of TMDB movie ids so watchlist upserts never hit NotCached.
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: warm_catalog <database_path> <ids.json>")
	}

	tmdbAPIKey := os.Getenv("TMDB_API_KEY")
	if tmdbAPIKey == "" {
		log.Fatal("TMDB_API_KEY environment variable is required")
	}

	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		log.Fatalf("Failed to read id list: %v", err)
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Fatalf("Failed to parse id list (expected a JSON array of numbers): %v", err)
	}

	db, err := database.NewDB(database.Config{DatabasePath: os.Args[1]})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	svc := metadata.NewService(metadata.Config{APIKey: tmdbAPIKey, RequestsPerSecond: 5}, db.Catalog, nil)
	defer svc.Close()

	ctx := context.Background()
	warmed := 0
	for _, id := range ids {
		if id <= 0 {
			log.Printf("Skipping invalid id %d", id)
			continue
		}
		if _, err := svc.GetDetails(ctx, id, false); err != nil {
			log.Printf("Warning: failed to fetch details for %d: %v", id, err)
			continue
		}
		warmed++
		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Catalog warm complete: %d of %d movies cached", warmed, len(ids))
}
