// Package enrichment defines the port for the one-time shared-context call.
package enrichment

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/record"
)

// Enricher produces the shared clinical context every later pipeline step
// depends on. A run that cannot obtain this context aborts at initialization.
type Enricher interface {
	EnrichContext(ctx context.Context, rec record.PatientRecord) (string, error)
}
