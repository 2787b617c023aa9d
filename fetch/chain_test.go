package fetch

import (
	"context"
	"errors"
	"testing"
)

type fakeFetcher struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ Options) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	primary := &fakeFetcher{name: "primary", result: &Result{Markdown: "primary"}}
	secondary := &fakeFetcher{name: "secondary", result: &Result{Markdown: "secondary"}}
	chain := NewChain(primary, secondary)

	result, err := chain.Fetch(context.Background(), "https://incidecoder.com/brands", Options{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if result.Markdown != "primary" {
		t.Errorf("got result from %q, want primary", result.Markdown)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be tried after primary success, calls = %d", secondary.calls)
	}
}

func TestChainFallsThroughOnError(t *testing.T) {
	primary := &fakeFetcher{name: "primary", err: &Error{Status: 502, Message: "bad gateway"}}
	secondary := &fakeFetcher{name: "secondary", result: &Result{HTML: "<p>ok</p>"}}
	chain := NewChain(primary, secondary)

	result, err := chain.Fetch(context.Background(), "https://incidecoder.com/brands", Options{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if result.HTML != "<p>ok</p>" {
		t.Errorf("expected secondary result, got %+v", result)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", primary.calls, secondary.calls)
	}
}

func TestChainReturnsLastError(t *testing.T) {
	first := &fakeFetcher{name: "first", err: errors.New("first down")}
	lastErr := &Error{Status: 503, Message: "last down"}
	second := &fakeFetcher{name: "second", err: lastErr}
	chain := NewChain(first, second)

	_, err := chain.Fetch(context.Background(), "https://incidecoder.com/brands", Options{})
	var fetchErr *Error
	if !errors.As(err, &fetchErr) || fetchErr.Status != 503 {
		t.Fatalf("expected last fetcher's error, got %v", err)
	}
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain()
	_, err := chain.Fetch(context.Background(), "https://incidecoder.com/brands", Options{})
	if err == nil {
		t.Fatalf("empty chain should error")
	}
}

type fakeMapper struct {
	fakeFetcher
	links []string
}

func (f *fakeMapper) Map(_ context.Context, _ string, _ MapOptions) ([]string, error) {
	return f.links, nil
}

func TestChainMapDelegatesToFirstMapper(t *testing.T) {
	plain := &fakeFetcher{name: "plain"}
	mapper := &fakeMapper{
		fakeFetcher: fakeFetcher{name: "mapper"},
		links:       []string{"https://incidecoder.com/products/a"},
	}
	chain := NewChain(plain, mapper)

	links, err := chain.Map(context.Background(), "https://incidecoder.com", MapOptions{})
	if err != nil {
		t.Fatalf("Map returned error: %v", err)
	}
	if len(links) != 1 || links[0] != "https://incidecoder.com/products/a" {
		t.Errorf("links = %v", links)
	}
}

func TestChainMapWithoutMapper(t *testing.T) {
	chain := NewChain(&fakeFetcher{name: "plain"})
	if _, err := chain.Map(context.Background(), "https://incidecoder.com", MapOptions{}); err == nil {
		t.Fatalf("expected error when no link supports mapping")
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeFetcher{name: "first", err: errors.New("down")}
	second := &fakeFetcher{name: "second", result: &Result{}}
	chain := NewChain(first, second)

	cancel()
	_, err := chain.Fetch(ctx, "https://incidecoder.com/brands", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if second.calls != 0 {
		t.Errorf("cancelled chain should not try further fetchers")
	}
}
