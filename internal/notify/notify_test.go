package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/policy"
)

type recorder struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]any
	status   int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.payloads = append(r.payloads, body)
	status := r.status
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("upstream says no"))
}

func newServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPNotifier_PostsToTargetPath(t *testing.T) {
	rec := &recorder{}
	ts := newServer(t, rec)
	n := NewHTTP(ts.URL+"/", 100, 1, time.Second, ts.Client())

	require.NoError(t, n.Notify(context.Background(), Event{
		Target: policy.NotifyAffiliation, Identifier: "BC0001234",
		FilingType: policy.IncorporationApplication, FilingID: 42,
	}))
	require.NoError(t, n.Notify(context.Background(), Event{
		Target: policy.NotifyEntityState, Identifier: "BC0001234",
		FilingType: policy.Dissolution, FilingID: 43,
	}))

	assert.Equal(t, []string{"/affiliations", "/entity-state"}, rec.paths)
	assert.Equal(t, map[string]any{
		"identifier": "BC0001234",
		"filingType": "incorporationApplication",
		"filingId":   float64(42),
	}, rec.payloads[0])
}

func TestHTTPNotifier_IgnoresUntargetedEvents(t *testing.T) {
	rec := &recorder{}
	ts := newServer(t, rec)
	n := NewHTTP(ts.URL, 100, 1, time.Second, ts.Client())

	require.NoError(t, n.Notify(context.Background(), Event{Identifier: "BC0001234", FilingID: 1}))
	assert.Empty(t, rec.paths)
}

func TestHTTPNotifier_NonSuccessIsDownstreamError(t *testing.T) {
	rec := &recorder{status: http.StatusBadGateway}
	ts := newServer(t, rec)
	n := NewHTTP(ts.URL, 100, 1, time.Second, ts.Client())

	err := n.Notify(context.Background(), Event{Target: policy.NotifyEntityState, Identifier: "BC0005678", FilingID: 7})
	require.Error(t, err)
	assert.Equal(t, errs.KindDownstreamNotification, errs.KindOf(err))
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream says no")
}

func TestHTTPNotifier_UnreachableIsDownstreamError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	n := NewHTTP(url, 100, 1, time.Second, nil)
	err := n.Notify(context.Background(), Event{Target: policy.NotifyAffiliation, Identifier: "BC0000001"})
	assert.Equal(t, errs.KindDownstreamNotification, errs.KindOf(err))
}

func TestHTTPNotifier_CancelledWhileRateLimited(t *testing.T) {
	rec := &recorder{}
	ts := newServer(t, rec)
	n := NewHTTP(ts.URL, 0.001, 1, time.Second, ts.Client())

	ev := Event{Target: policy.NotifyAffiliation, Identifier: "BC0000002"}
	require.NoError(t, n.Notify(context.Background(), ev))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Notify(ctx, ev)
	assert.Equal(t, errs.KindDownstreamNotification, errs.KindOf(err))
	assert.Len(t, rec.paths, 1)
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Notify(context.Background(), Event{Target: policy.NotifyAffiliation}))
}
