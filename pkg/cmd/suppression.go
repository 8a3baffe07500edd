package cmd

import (
	"context"
	"strings"

	"github.com/omniflowhq/omniflow/pkg/suppression"
)

// NewSuppressionStore creates the duplicate-trigger claim store. A redis://
// URL yields the shared Redis store; anything else falls back to the
// in-process store, which only suppresses within a single worker.
func NewSuppressionStore(ctx context.Context, url string) (suppression.Store, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		return suppression.NewRedisStore(ctx, url)
	}

	return suppression.NewMemoryStore(), nil
}
