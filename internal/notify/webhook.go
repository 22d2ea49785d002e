package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// WebhookPublisher отправляет события заказов POST-запросом на внешний адрес.
// Ответы 429 и 5xx повторяются с учётом заголовка Retry-After.
type WebhookPublisher struct {
	url    string
	client *retryablehttp.Client
}

// WebhookOption настраивает WebhookPublisher.
type WebhookOption func(*retryablehttp.Client)

// WithRetries задаёт число повторов и границы паузы между ними.
func WithRetries(max int, waitMin, waitMax time.Duration) WebhookOption {
	return func(c *retryablehttp.Client) {
		c.RetryMax = max
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// NewWebhookPublisher создаёт издателя для указанного адреса.
func NewWebhookPublisher(url string, logger *zap.Logger, opts ...WebhookOption) *WebhookPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = 5 * time.Second
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = leveledLogger{logger.Sugar()}
	for _, opt := range opts {
		opt(client)
	}

	return &WebhookPublisher{url: url, client: client}
}

// Publish отправляет событие и ждёт ответа 2xx.
func (p *WebhookPublisher) Publish(ctx context.Context, e OrderEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Soapyfy-Event", e.Type)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Close освобождает простаивающие соединения.
func (p *WebhookPublisher) Close() error {
	p.client.HTTPClient.CloseIdleConnections()
	return nil
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
