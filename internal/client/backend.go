package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/shape"
)

// sender is the outbound half of Socket used by the network backend.
type sender interface {
	SendShape(roomID int64, message string)
	SendDelete(roomID, shapeID int64)
}

// historyFetcher is the REST slice the backend needs on startup.
type historyFetcher interface {
	History(ctx context.Context, roomID int64) ([]shape.Element, error)
}

// NetworkBackend makes engine edits durable through the room relay. Load
// goes over REST; live adds and deletes go over the socket.
type NetworkBackend struct {
	roomID int64
	rest   historyFetcher
	sock   sender
	lg     *zap.Logger
}

// NewNetworkBackend wires a room's durable log to the engine.
func NewNetworkBackend(roomID int64, rest *REST, sock *Socket, lg *zap.Logger) *NetworkBackend {
	return &NetworkBackend{roomID: roomID, rest: rest, sock: sock, lg: lg}
}

// Load fetches the room's shape history.
func (b *NetworkBackend) Load(ctx context.Context) ([]shape.Element, error) {
	return b.rest.History(ctx, b.roomID)
}

// ShapeAdded broadcasts the element. Encoding failures are logged and the
// edit stays local; peers reconcile on their next history load.
func (b *NetworkBackend) ShapeAdded(el shape.Element, _ []shape.Element) {
	msg, err := shape.EncodeElement(el)
	if err != nil {
		b.lg.Warn("encode element", zap.Int64("id", el.ID), zap.Error(err))
		return
	}
	b.sock.SendShape(b.roomID, msg)
}

// ShapeDeleted broadcasts the delete.
func (b *NetworkBackend) ShapeDeleted(id int64, _ []shape.Element) {
	b.sock.SendDelete(b.roomID, id)
}

// GuestBackend adapts the local guest store to the engine. Every mutation
// snapshots the whole canvas, matching the single-key storage format.
type GuestBackend struct {
	store guestStore
	lg    *zap.Logger
}

type guestStore interface {
	Load() ([]shape.Element, error)
	Save(els []shape.Element) error
}

// NewGuestBackend wires the local store to the engine.
func NewGuestBackend(store guestStore, lg *zap.Logger) *GuestBackend {
	return &GuestBackend{store: store, lg: lg}
}

// Load reads the saved canvas.
func (b *GuestBackend) Load(context.Context) ([]shape.Element, error) {
	return b.store.Load()
}

// ShapeAdded persists the full canvas snapshot.
func (b *GuestBackend) ShapeAdded(_ shape.Element, all []shape.Element) {
	if err := b.store.Save(all); err != nil {
		b.lg.Warn("guest save failed", zap.Error(err))
	}
}

// ShapeDeleted persists the full canvas snapshot.
func (b *GuestBackend) ShapeDeleted(_ int64, all []shape.Element) {
	if err := b.store.Save(all); err != nil {
		b.lg.Warn("guest save failed", zap.Error(err))
	}
}
