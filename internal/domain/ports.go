package domain

import "context"

type PropertyRepository interface {
	// Write paths
	UpsertProperties(ctx context.Context, ps []Property) error

	// Read paths
	GetProperty(ctx context.Context, id string) (Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, username string) (User, error)
	// UpdateUser replaces the record stored under username; u.Username may differ (rename).
	UpdateUser(ctx context.Context, username string, u User) error
	DeleteUser(ctx context.Context, username string) error
}

type HistoryRepository interface {
	SaveRun(ctx context.Context, run RecommendationRun) error
	LatestRun(ctx context.Context, username string) (RecommendationRun, error)
}

// CatalogSource supplies the full catalog snapshot (MySQL or a CSV file).
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]Property, error)
}

// HintProvider turns free text into structured ranking hints.
// Callers must treat any error as "no hints".
type HintProvider interface {
	ExtractHints(ctx context.Context, text string) (Hints, error)
}

type BlurbWriter interface {
	Blurb(ctx context.Context, prompt string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
