package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/whatsapp"
	redis "github.com/redis/go-redis/v9"
)

// TemplateConfig configures the WhatsApp template source.
type TemplateConfig struct {
	AccessToken       string
	BusinessAccountID string
	APIURL            string
	RedisURL          string
	CacheTTL          time.Duration
}

// NewTemplateSource returns nil when WhatsApp is not configured. A Redis URL
// puts a cache in front of the Graph API.
func NewTemplateSource(config TemplateConfig, logger *slog.Logger) (editor.TemplateSource, error) {
	if config.AccessToken == "" || config.BusinessAccountID == "" {
		logger.Info("WhatsApp templates disabled; no access token or business account id")

		return nil, nil
	}

	client := whatsapp.NewClient(whatsapp.Config{
		BaseURL:           config.APIURL,
		AccessToken:       config.AccessToken,
		BusinessAccountID: config.BusinessAccountID,
		RetryAttempts:     3,
		RetryDelay:        500 * time.Millisecond,
	}, logger)

	if config.RedisURL == "" {
		return client, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return whatsapp.NewCachedSource(client, redis.NewClient(opts), ttl, logger), nil
}
