package memory

import (
	"context"
	"fmt"
)

// StaticFetcher serves question documents from an in-memory map (useful for
// tests, demos and the embedded sample set).
type StaticFetcher struct {
	payloads map[string][]byte
}

func NewStaticFetcher(payloads map[string][]byte) *StaticFetcher {
	return &StaticFetcher{payloads: payloads}
}

func (f *StaticFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	if payload, ok := f.payloads[source]; ok {
		return payload, nil
	}
	return nil, fmt.Errorf("question source %q not found", source)
}
