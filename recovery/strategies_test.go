package recovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestStrictAlwaysFails(t *testing.T) {
	s := NewStrictStrategy()
	got := s.OnError(context.Background(), errors.New("boom"), Location{Item: 2, Page: 0, Component: "render"})
	if got != ActionFail {
		t.Errorf("action = %v, want ActionFail", got)
	}
}

func TestLenientWarnsAndRecords(t *testing.T) {
	s := NewLenientStrategy()
	ctx := context.Background()

	if got := s.OnError(ctx, errors.New("bad page"), Location{Item: 1, Page: 3, Component: "compare"}); got != ActionWarn {
		t.Fatalf("action = %v, want ActionWarn", got)
	}
	if got := s.OnError(ctx, errors.New("bad item"), Location{Item: 4, Page: -1, Component: "extract"}); got != ActionWarn {
		t.Fatalf("action = %v, want ActionWarn", got)
	}

	errs := s.Errors()
	if len(errs) != 2 {
		t.Fatalf("recorded %d errors, want 2", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "page 3") {
		t.Errorf("page-scoped error lost its page: %v", errs[0])
	}
	if strings.Contains(errs[1].Error(), "page") {
		t.Errorf("item-scoped error mentions a page: %v", errs[1])
	}
}

func TestLenientErrorsReturnsCopy(t *testing.T) {
	s := NewLenientStrategy()
	s.OnError(context.Background(), errors.New("one"), Location{Page: -1, Component: "batch"})
	errs := s.Errors()
	errs[0] = errors.New("clobbered")
	if s.Errors()[0].Error() != "[batch] item 0: one" {
		t.Error("caller mutated the strategy's internal state")
	}
}

func TestLenientConcurrent(t *testing.T) {
	s := NewLenientStrategy()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.OnError(context.Background(), errors.New("worker"), Location{Item: i, Page: -1})
		}(i)
	}
	wg.Wait()
	if got := len(s.Errors()); got != 16 {
		t.Errorf("recorded %d errors, want 16", got)
	}
}
