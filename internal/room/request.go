package room

import (
	"context"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/types"
)

// Send posts m to the room. It fails once the room has shut down or ctx is done.
func (r *Room) Send(ctx context.Context, m Msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) Admit(ctx context.Context, username string, role engine.Role) error {
	reply := make(chan error, 1)
	if err := r.Send(ctx, Admit{Username: username, Role: role, Reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

func (r *Room) Join(ctx context.Context, clientID, username string, role engine.Role, outbox chan types.ServerMessage) error {
	reply := make(chan error, 1)
	msg := Join{ClientID: clientID, Username: username, Role: role, Outbox: outbox, Reply: reply}
	if err := r.Send(ctx, msg); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

func (r *Room) Snapshot(ctx context.Context) (SnapshotReply, error) {
	reply := make(chan SnapshotReply, 1)
	if err := r.Send(ctx, GetSnapshot{Reply: reply}); err != nil {
		return SnapshotReply{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) Squad(ctx context.Context, username string) (engine.SquadView, error) {
	reply := make(chan SquadReply, 1)
	if err := r.Send(ctx, GetSquad{Username: username, Reply: reply}); err != nil {
		return engine.SquadView{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return engine.SquadView{}, err
	}
	return res.Squad, res.Err
}

// await waits for the room's reply. A reply that raced with shutdown still wins.
func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
