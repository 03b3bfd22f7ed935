package quizdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// FileFetcher reads question documents from the local filesystem.
type FileFetcher struct{}

func NewFileFetcher() *FileFetcher { return &FileFetcher{} }

func (f *FileFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	return data, nil
}

// HTTPFetcher retrieves question documents from a remote endpoint.
type HTTPFetcher struct {
	client *http.Client
}

const defaultFetchTimeout = 10 * time.Second

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch questions: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
