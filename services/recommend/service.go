package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"cinelist/models"
)

const (
	// FallbackBlurb is served whenever the completion backend fails.
	FallbackBlurb = "This movie looks like it could be a great watch based on your taste!"
	// EmptyBlurb is served when the backend answers without any text.
	EmptyBlurb = "This movie looks like a great addition to your watchlist!"

	systemPrompt     = "You are a friendly movie recommendation assistant. Keep responses short, enthusiastic, and personalized."
	recentTitleLimit = 5
	overviewExcerpt  = 150
	defaultModel     = openai.ChatModelGPT3_5Turbo
)

var (
	ErrMissingInput  = errors.New("missing tmdb_id or user_id")
	ErrMovieNotFound = errors.New("movie not found")
)

// Completer produces a chat completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type movieLookup interface {
	GetByTMDBID(ctx context.Context, tmdbID int64) (*models.CatalogItem, error)
}

type historyLookup interface {
	ListByUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
}

type Service struct {
	movies    movieLookup
	history   historyLookup
	completer Completer
}

// NewService builds the recommendation service. A nil completer makes every request fall back to
// FallbackBlurb.
func NewService(movies movieLookup, history historyLookup, completer Completer) *Service {
	return &Service{movies: movies, history: history, completer: completer}
}

// Recommend writes a short personalised blurb about the movie for the user. Only missing input and
// an uncached movie are reported as errors; everything else degrades to FallbackBlurb.
func (s *Service) Recommend(ctx context.Context, userID string, tmdbID int64) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || tmdbID <= 0 {
		return "", ErrMissingInput
	}

	movie, err := s.movies.GetByTMDBID(ctx, tmdbID)
	if err != nil {
		log.Printf("[recommend] movie lookup failed tmdb=%d: %v", tmdbID, err)
		return FallbackBlurb, nil
	}
	if movie == nil {
		return "", ErrMovieNotFound
	}

	var recent []string
	if s.history != nil {
		entries, err := s.history.ListByUser(ctx, userID)
		if err != nil {
			log.Printf("[recommend] watchlist lookup failed user=%s: %v", userID, err)
		}
		recent = recentTitles(entries, recentTitleLimit)
	}

	if s.completer == nil {
		return FallbackBlurb, nil
	}
	text, err := s.completer.Complete(ctx, systemPrompt, buildPrompt(movie, recent))
	if err != nil {
		log.Printf("[recommend] completion failed tmdb=%d: %v", tmdbID, err)
		return FallbackBlurb, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return EmptyBlurb, nil
	}
	return text, nil
}

func buildPrompt(movie *models.CatalogItem, recent []string) string {
	overview := []rune(movie.Overview)
	if len(overview) > overviewExcerpt {
		overview = overview[:overviewExcerpt]
	}
	return fmt.Sprintf("Based on this movie: %q (%s...) and user's recent preferences: [%s], "+
		"write a short, friendly 2-sentence blurb about why they might enjoy this movie. "+
		"Keep it conversational and enthusiastic.",
		movie.Title, string(overview), strings.Join(recent, ", "))
}

func recentTitles(entries []models.WatchlistEntry, limit int) []string {
	titles := make([]string, 0, limit)
	for _, e := range entries {
		if len(titles) == limit {
			break
		}
		if e.Movie == nil || strings.TrimSpace(e.Movie.Title) == "" {
			continue
		}
		titles = append(titles, e.Movie.Title)
	}
	return titles
}

// OpenAICompleter calls the chat completions API.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(model) == "" {
		model = string(defaultModel)
	}
	return &OpenAICompleter{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(100),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
