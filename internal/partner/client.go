// Package partner предоставляет клиент партнёрской стороны для API реферального сервиса.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured возвращается, если адрес сервиса не задан.
var ErrNotConfigured = errors.New("partner client not configured")

// StatusError описывает неуспешный ответ сервиса.
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.Code, e.Message)
}

// Client инкапсулирует HTTP-взаимодействие партнёра с реферальным сервисом.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Event описывает реферальное событие в формате партнёрской системы.
type Event struct {
	Code       string           `json:"code"`
	Event      string           `json:"event"`
	ClientID   string           `json:"clientId"`
	ClientName string           `json:"clientName,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	EventID    string           `json:"eventId,omitempty"`
}

// EventResponse описывает ответ сервиса на реферальное событие.
type EventResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	AmbassadorID  string `json:"ambassadorId"`
	MonoyiAwarded *int64 `json:"monoyiAwarded,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

// VerifyResponse описывает ответ сервиса на проверку промокода.
type VerifyResponse struct {
	Valid          bool   `json:"valid"`
	ReferralCode   string `json:"referralCode,omitempty"`
	AmbassadorName string `json:"ambassadorName,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewClient создаёт клиент для сервиса по указанному адресу и ключу партнёра.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) url(path string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path, nil
}

// SendEvent отправляет событие регистрации или активации клиента.
func (c *Client) SendEvent(ctx context.Context, evt Event) (*EventResponse, error) {
	var result EventResponse
	if err := c.post(ctx, "/api/webhooks/referrals", evt, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyCode проверяет промокод перед применением. Неизвестный код не считается ошибкой.
func (c *Client) VerifyCode(ctx context.Context, code string) (*VerifyResponse, error) {
	var result VerifyResponse
	err := c.post(ctx, "/api/promo/verify", map[string]string{"code": code}, false, &result)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return &VerifyResponse{Valid: false, Error: statusErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body any, auth bool, out any) error {
	url, err := c.url(path)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}

	if resp.StatusCode == http.StatusTooManyRequests {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				statusErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}

	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil {
		statusErr.Message = body.Error
	}
	return statusErr
}
