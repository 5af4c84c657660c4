package client

import (
	"context"
	"fmt"
)

// guestExporter is the guest store surface the conversion flow needs.
type guestExporter interface {
	Export() ([]string, error)
	Clear() error
}

// shapePoster persists single serialized elements over REST.
type shapePoster interface {
	PostShape(ctx context.Context, roomID int64, message string) error
}

// ImportGuest replays the locally buffered canvas into a room's durable log
// and clears the local buffer on success. Shape ids are client-assigned, so
// the server treats a replayed id as already stored and the flow is safe to
// re-run after a partial failure.
func ImportGuest(ctx context.Context, rest shapePoster, store guestExporter, roomID int64) (int, error) {
	msgs, err := store.Export()
	if err != nil {
		return 0, fmt.Errorf("export guest canvas: %w", err)
	}
	for i, msg := range msgs {
		if err := rest.PostShape(ctx, roomID, msg); err != nil {
			return i, fmt.Errorf("import shape %d of %d: %w", i+1, len(msgs), err)
		}
	}
	if err := store.Clear(); err != nil {
		return len(msgs), fmt.Errorf("clear guest canvas: %w", err)
	}
	return len(msgs), nil
}
