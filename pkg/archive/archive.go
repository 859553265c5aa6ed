package archive

import (
	"context"

	"github.com/medley-health/medley/pkg/model"
)

// Sink receives committed sessions. Export is best effort; callers log errors
// and never fail a request because of them.
type Sink interface {
	Name() string
	Export(ctx context.Context, session *model.SessionRecord) error
}
