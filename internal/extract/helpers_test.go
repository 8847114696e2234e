package extract

import (
	"context"
	"net/http"
	"sync"

	"tldr/internal/domain"
)

// fakeFetcher serves canned responses by URL and 404s everything else.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*domain.FetchResult
	errs      map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*domain.FetchResult),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) serve(url, contentType, body string) *fakeFetcher {
	f.responses[url] = &domain.FetchResult{
		Body:        body,
		ContentType: contentType,
		URL:         url,
		Status:      http.StatusOK,
	}
	return f
}

func (f *fakeFetcher) status(url string, status int) *fakeFetcher {
	f.responses[url] = &domain.FetchResult{URL: url, Status: status}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*domain.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, url)

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if res, ok := f.responses[url]; ok {
		copied := *res
		return &copied, nil
	}

	return &domain.FetchResult{URL: url, Status: http.StatusNotFound}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

// pagesDecoder ignores its input and returns fixed page texts.
func pagesDecoder(pages ...string) PageDecoder {
	return func([]byte) ([]string, error) {
		return pages, nil
	}
}
