// Package whatsapp lists message templates from the WhatsApp Business
// Management API.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/chatflow/pkg/models"
)

// DefaultBaseURL is the Graph API root used when Config.BaseURL is empty.
const DefaultBaseURL = "https://graph.facebook.com/v21.0"

const (
	defaultTimeout  = 10 * time.Second
	defaultPageSize = 100
	maxPages        = 50
)

var (
	// ErrNotConfigured is returned when no access token or account id is set.
	ErrNotConfigured = errors.New("whatsapp templates are not configured")

	// ErrAPI is returned for non-success responses from the Graph API.
	ErrAPI = errors.New("whatsapp api error")
)

// APIError carries the error body returned by the Graph API.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api returned %d: %s (type %s, code %d)", e.StatusCode, e.Message, e.Type, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

type Config struct {
	BaseURL           string
	AccessToken       string
	BusinessAccountID string
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// Client fetches templates for one WhatsApp Business Account.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("module", "whatsapp_client"),
	}
}

type templatePage struct {
	Data   []models.MessageTemplate `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// GetWhatsAppTemplates returns every template of the account, following pagination.
func (c *Client) GetWhatsAppTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	if c.config.AccessToken == "" || c.config.BusinessAccountID == "" {
		return nil, ErrNotConfigured
	}

	next := fmt.Sprintf("%s/%s/message_templates?limit=%d",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(c.config.BusinessAccountID), defaultPageSize)

	templates := make([]models.MessageTemplate, 0)

	for page := 0; next != "" && page < maxPages; page++ {
		result, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}

		templates = append(templates, result.Data...)
		next = result.Paging.Next
	}

	if next != "" {
		c.logger.WarnContext(ctx, "Template list truncated at page limit",
			"max_pages", maxPages,
			"count", len(templates))
	}

	c.logger.DebugContext(ctx, "Fetched message templates", "count", len(templates))

	return templates, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*templatePage, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			c.logger.InfoContext(ctx, "Retrying template request", "attempt", attempt, "max_attempts", c.config.RetryAttempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		page, retry, err := c.doRequest(ctx, pageURL)
		if err == nil {
			return page, nil
		}

		lastErr = err

		if !retry {
			break
		}
	}

	return nil, lastErr
}

// doRequest performs one GET. retry reports whether the failure is transient.
func (c *Client) doRequest(ctx context.Context, pageURL string) (*templatePage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create template request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("template request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read template response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			apiErr.Message = envelope.Error.Message
			apiErr.Type = envelope.Error.Type
			apiErr.Code = envelope.Error.Code
		}

		return nil, resp.StatusCode >= http.StatusInternalServerError, apiErr
	}

	var page templatePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false, fmt.Errorf("failed to decode template response: %w", err)
	}

	return &page, false, nil
}
