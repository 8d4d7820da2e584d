package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEmailJSPostsTemplateParams(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &EmailJS{
		HTTPClient: srv.Client(),
		Endpoint:   srv.URL,
		ServiceID:  "svc",
		PublicKey:  "pub",
		PrivateKey: "priv",
		Templates:  map[string]string{"contact": "tmpl_contact"},
		DefaultTo:  "support@campus.edu",
	}

	err := client.Send(context.Background(), "contact", map[string]string{"name": "Asha", "message": "hello"})

	require.NoError(t, err)
	assert.Equal(t, "svc", got.ServiceID)
	assert.Equal(t, "tmpl_contact", got.TemplateID)
	assert.Equal(t, "pub", got.UserID)
	assert.Equal(t, "priv", got.AccessToken)
	assert.Equal(t, "support@campus.edu", got.Params["to_email"])
	assert.Equal(t, "Asha", got.Params["name"])
}

func TestEmailJSReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "The template ID is invalid", http.StatusBadRequest)
	}))
	defer srv.Close()
	client := &EmailJS{HTTPClient: srv.Client(), Endpoint: srv.URL, Templates: map[string]string{"report": "t"}}

	err := client.Send(context.Background(), "report", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template ID is invalid")

	err = client.Send(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

type slowNotifier struct {
	mu    sync.Mutex
	sent  []string
	delay time.Duration
	err   error
}

func (s *slowNotifier) Send(_ context.Context, template string, _ map[string]string) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, template)
	return s.err
}

func TestAsyncNotifierDeliversQueuedMailOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &slowNotifier{delay: time.Millisecond}
	n := NewAsyncNotifier(next, 8, nil)
	require.NoError(t, n.Send(context.Background(), "contact", nil))
	require.NoError(t, n.Send(context.Background(), "report", nil))

	require.NoError(t, n.Close(context.Background()))
	assert.Equal(t, []string{"contact", "report"}, next.sent)
	assert.ErrorIs(t, n.Send(context.Background(), "late", nil), ErrClosed)
	require.NoError(t, n.Close(context.Background()))
}

func TestAsyncNotifierDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	next := &blockingNotifier{release: block}
	n := NewAsyncNotifier(next, 1, nil)

	require.NoError(t, n.Send(context.Background(), "a", nil))
	// wait until the worker holds "a" so the queue slot is free again
	require.Eventually(t, next.started, time.Second, time.Millisecond)
	require.NoError(t, n.Send(context.Background(), "b", nil))
	assert.ErrorIs(t, n.Send(context.Background(), "c", nil), ErrQueueFull)

	close(block)
	require.NoError(t, n.Close(context.Background()))
}

func TestAsyncNotifierSurvivesDeliveryErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &slowNotifier{err: errors.New("smtp down")}
	n := NewAsyncNotifier(next, 4, nil)
	require.NoError(t, n.Send(context.Background(), "a", nil))
	require.NoError(t, n.Send(context.Background(), "b", nil))
	require.NoError(t, n.Close(context.Background()))
	assert.Len(t, next.sent, 2)
}

type blockingNotifier struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (b *blockingNotifier) Send(context.Context, string, map[string]string) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return nil
}

func (b *blockingNotifier) started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls > 0
}
