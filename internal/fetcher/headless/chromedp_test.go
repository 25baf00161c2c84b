package headless

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

func TestNewDisabledWithoutParallelism(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{MaxParallel: 0}, zap.NewNop()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestAcquireSlotBlocksAndCancels(t *testing.T) {
	t.Parallel()

	f := &Fetcher{sem: make(chan struct{}, 1)}

	release, err := f.acquireSlot(context.Background())
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.acquireSlot(ctx); err == nil {
		t.Fatal("expected acquire on full semaphore with canceled context to fail")
	}

	release()
	release2, err := f.acquireSlot(context.Background())
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestWaitDomainBudget(t *testing.T) {
	t.Parallel()

	f := &Fetcher{}
	if err := f.waitDomainBudget(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("zero qps should not limit: %v", err)
	}

	f = &Fetcher{domainQPS: 1000}
	for i := 0; i < 3; i++ {
		if err := f.waitDomainBudget(context.Background(), "https://example.com/page"); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}

	if err := f.waitDomainBudget(context.Background(), "http://[::1"); err == nil {
		t.Fatal("expected parse error for malformed url")
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	if meta.status() != http.StatusOK {
		t.Fatalf("empty meta status = %d, want 200", meta.status())
	}
	if got := meta.finalURL("https://fallback"); got != "https://fallback" {
		t.Fatalf("empty meta finalURL = %q, want fallback", got)
	}

	meta.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://example.com/missing"},
	})
	meta.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://example.com/iframe"},
	})
	if meta.status() != http.StatusNotFound {
		t.Fatalf("meta.status() = %d, want first capture 404", meta.status())
	}
	if got := meta.finalURL("x"); got != "https://example.com/missing" {
		t.Fatalf("meta.finalURL() = %q, want first capture", got)
	}

	meta = newResponseMeta()
	meta.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 500, URL: "https://example.com/banner.png"},
	})
	if meta.status() != http.StatusOK {
		t.Fatalf("non-document responses must not be captured, got %d", meta.status())
	}
}

func TestForwardCancelPropagates(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled after parent")
	}
}

func TestDisabledFetcher(t *testing.T) {
	t.Parallel()

	f := NewDisabled()
	if _, err := f.Fetch(context.Background(), "https://example.com"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	f.Close()
}
