// Package notify renders accepted listings into Telegram messages and
// dispatches them with pacing and per-message failure isolation. When no
// transport is configured, or a send fails, the message lands in the log
// sink instead so a broken bot never stalls a collection cycle.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
)

const defaultEndpoint = "https://api.telegram.org"

// Config carries the transport credentials and dispatch behavior.
type Config struct {
	BotToken  string
	ChatID    string
	Pacing    time.Duration // minimum delay between sends
	BatchSize int           // listings per message; 1 sends one message each
}

// Dispatcher sends one formatted message per listing (or per batch group)
// through the Telegram Bot API.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	endpoint string
	logger   *logrus.Logger
}

// NewDispatcher builds a dispatcher. Pacing defaults to 350ms and batch
// size to 1 when unset.
func NewDispatcher(cfg Config, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = 350 * time.Millisecond
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Dispatcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: defaultEndpoint,
		logger:   logger,
	}
}

// Configured reports whether the transport has credentials to send with.
func (d *Dispatcher) Configured() bool {
	return d.cfg.BotToken != "" && d.cfg.ChatID != ""
}

// Notify delivers the listings and returns how many of them went through
// the transport. A failed send is logged, dumped to the log sink and does
// not stop the remaining listings from being attempted.
func (d *Dispatcher) Notify(ctx context.Context, listings []models.Listing) int {
	delivered := 0
	for start := 0; start < len(listings); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(listings) {
			end = len(listings)
		}
		group := listings[start:end]
		body := renderGroup(group)

		if !d.Configured() {
			d.logger.WithField("message", body).Info("Telegram not configured, message not sent")
			continue
		}

		if err := d.send(ctx, body); err != nil {
			d.logger.WithError(err).WithField("message", body).Error("Telegram send failed")
			continue
		}
		delivered += len(group)

		if end < len(listings) {
			select {
			case <-ctx.Done():
				return delivered
			case <-time.After(d.cfg.Pacing):
			}
		}
	}
	return delivered
}

// send posts one message to the Bot API, mapping the common failure
// statuses to readable errors.
func (d *Dispatcher) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", d.endpoint, d.cfg.BotToken)
	payload := map[string]interface{}{
		"chat_id":                  d.cfg.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}
	return nil
}

// renderGroup concatenates listing renderings into one message body.
func renderGroup(group []models.Listing) string {
	var buf bytes.Buffer
	for i, l := range group {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(RenderListing(l))
	}
	return buf.String()
}

// RenderListing formats one listing as an HTML Telegram message.
func RenderListing(l models.Listing) string {
	price := "?"
	if l.Price != nil {
		price = strconv.Itoa(*l.Price)
	}
	return fmt.Sprintf("<b>%s€</b> — %s\n%s\nSource: %s\n%s",
		price, l.Title, l.Address, l.Source, l.Link)
}
