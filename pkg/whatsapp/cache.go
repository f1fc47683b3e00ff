package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

// DefaultCacheKey is the Redis key holding the cached template list.
const DefaultCacheKey = "chatflow:whatsapp:templates"

// Source lists message templates.
type Source interface {
	GetWhatsAppTemplates(ctx context.Context) ([]models.MessageTemplate, error)
}

// CachedSource keeps the template list in Redis for a TTL. Redis failures
// fall through to the wrapped source.
type CachedSource struct {
	source Source
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSource(source Source, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedSource{
		source: source,
		client: client,
		key:    DefaultCacheKey,
		ttl:    ttl,
		logger: logger.With("module", "whatsapp_cache"),
	}
}

func (c *CachedSource) GetWhatsAppTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	cached, err := c.client.Get(ctx, c.key).Bytes()

	switch {
	case err == nil:
		var templates []models.MessageTemplate
		if jsonErr := json.Unmarshal(cached, &templates); jsonErr == nil {
			return templates, nil
		}

		c.logger.WarnContext(ctx, "Discarding undecodable template cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "Template cache unavailable", "error", err)
	}

	templates, err := c.source.GetWhatsAppTemplates(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(templates)
	if err != nil {
		return templates, nil
	}

	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Failed to cache templates", "error", err)
	}

	return templates, nil
}

// Invalidate drops the cached list so the next call reaches the source.
func (c *CachedSource) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
