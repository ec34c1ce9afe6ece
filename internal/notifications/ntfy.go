package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "walker-yt/0.1.0"

// Ntfy publishes final run outcomes to an ntfy topic. Intermediate progress
// is dropped so phones are not buzzed once per percent.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy targets server/topic, or topic itself when it is a full URL.
func NewNtfy(server, topic string, timeout time.Duration) *Ntfy {
	endpoint := strings.TrimSpace(topic)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimRight(strings.TrimSpace(server), "/") + "/" + strings.TrimLeft(endpoint, "/")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Endpoint returns the URL updates are posted to.
func (n *Ntfy) Endpoint() string { return n.endpoint }

func (n *Ntfy) Progress(ctx context.Context, update Update) (Token, error) {
	if !update.Final {
		return update.Replace, nil
	}
	tags := []string{"walker-yt", "completed"}
	priority := ""
	if update.Failed {
		tags = []string{"walker-yt", "error", "alert"}
		priority = "high"
	}
	message := strings.TrimSpace(update.Body)
	if message == "" {
		message = update.Title
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return update.Replace, fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title := strings.TrimSpace(update.Title); title != "" {
		req.Header.Set("Title", "walker-yt - "+title)
	}
	req.Header.Set("Tags", strings.Join(tags, ","))
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return update.Replace, fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return update.Replace, fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return update.Replace, nil
}
