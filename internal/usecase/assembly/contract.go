package assembly

import "context"

// LinkResolver maps a storage object key to a shareable document URL.
// Resolution is best-effort and never fails a turn.
type LinkResolver interface {
	Resolve(ctx context.Context, objectKey string) string
}
