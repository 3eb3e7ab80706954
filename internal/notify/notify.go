// Package notify tells downstream services about committed filings.
//
// Notifications are best effort: the filing is already committed when a
// notification is sent, so callers log failures and carry on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// Event is one committed filing to announce.
type Event struct {
	Target     string            `json:"-"`
	Identifier string            `json:"identifier"`
	FilingType policy.FilingType `json:"filingType"`
	FilingID   int64             `json:"filingId"`
}

// Notifier announces committed filings.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Noop discards every notification.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) error { return nil }

var paths = map[string]string{
	policy.NotifyAffiliation: "/affiliations",
	policy.NotifyEntityState: "/entity-state",
}

// HTTPNotifier posts notifications as JSON to a base URL.
//
// Thread-safety: safe for concurrent use; the limiter is shared by all
// callers.
type HTTPNotifier struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewHTTP creates a notifier allowing perSecond calls with the given burst.
// A nil client uses http.DefaultClient.
func NewHTTP(baseURL string, perSecond float64, burst int, timeout time.Duration, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		timeout: timeout,
	}
}

// Notify posts ev to the endpoint of its target. Events with no target are
// ignored.
func (n *HTTPNotifier) Notify(ctx context.Context, ev Event) error {
	path, ok := paths[ev.Target]
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.KindDownstreamNotification, err, "wait for notify slot for %s", ev.Identifier)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(errs.KindDownstreamNotification, err, "encode notification for %s", ev.Identifier)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.KindDownstreamNotification, err, "build notification for %s", ev.Identifier)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindDownstreamNotification, err, "notify %s for %s", path, ev.Identifier)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.New(errs.KindDownstreamNotification, "notify %s for %s: status %d: %s",
			path, ev.Identifier, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// String describes the notifier for startup logs.
func (n *HTTPNotifier) String() string {
	return fmt.Sprintf("http(%s, %.2f/s)", n.baseURL, float64(n.limiter.Limit()))
}
