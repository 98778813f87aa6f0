package cache

import (
	"context"
	"errors"
	"testing"
)

// mockCacheService runs fetchFn unless a canned result is configured.
type mockCacheService struct {
	result  any
	err     error
	canned  bool
	fetches int
	keys    []string
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	m.keys = append(m.keys, key)
	if m.canned {
		return m.result, m.err
	}
	m.fetches++
	return fetchFn(ctx)
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error {
	return nil
}

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return nil
}

func (m *mockCacheService) InvalidateKeys(ctx context.Context, keys []string) error {
	return nil
}

func TestGetOrFetch_CallsFetchThroughService(t *testing.T) {
	mock := &mockCacheService{}

	result, err := GetOrFetch(context.Background(), mock, "k1", func(ctx context.Context) ([]string, error) {
		return []string{"e1", "e2"}, nil
	})
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	if len(result) != 2 || result[0] != "e1" {
		t.Errorf("unexpected result: %v", result)
	}
	if mock.fetches != 1 || mock.keys[0] != "k1" {
		t.Errorf("expected one fetch for k1, got fetches=%d keys=%v", mock.fetches, mock.keys)
	}
}

func TestGetOrFetch_NilInterfaceResult(t *testing.T) {
	mock := &mockCacheService{canned: true}

	type SomeInterface interface {
		DoSomething() string
	}

	result, err := GetOrFetch[SomeInterface](context.Background(), mock, "test-key", func(ctx context.Context) (SomeInterface, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypedNilPointer(t *testing.T) {
	mock := &mockCacheService{canned: true, result: (*string)(nil)}

	result, err := GetOrFetch[*string](context.Background(), mock, "test-key", func(ctx context.Context) (*string, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	mock := &mockCacheService{canned: true, result: "wrong-type"}

	result, err := GetOrFetch[int](context.Background(), mock, "test-key", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestGetOrFetch_PropagatesFetchError(t *testing.T) {
	mock := &mockCacheService{}
	fetchErr := errors.New("source unavailable")

	result, err := GetOrFetch(context.Background(), mock, "test-key", func(ctx context.Context) (string, error) {
		return "ignored", fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Errorf("expected fetch error but got: %v", err)
	}
	if result != "" {
		t.Errorf("expected zero value on error but got: %q", result)
	}
}

func TestNewCacheService_Defaults(t *testing.T) {
	svc, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(context.Background(), svc, "answer", fetch)
		if err != nil || got != 7 {
			t.Fatalf("GetOrFetch() = %v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}
}

func TestNewCacheService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0

	if _, err := NewCacheService(cfg); err == nil {
		t.Fatal("expected invalid config error")
	}
}
