package service

import (
	"context"
	"errors"

	"github.com/relaychat/relayd/internal/domain/model"
)

// chat routes a one-to-one message. Three tiers, first match wins: local
// connection, cross-process relay, offline queue. Send-and-forget: no
// acknowledgement is routed back to the sender in any branch.
func (r *Router) chat(ctx context.Context, conn model.Conn, env *model.Envelope) {
	r.route(ctx, env.ToID, env.Raw())
}

// groupChat fans one message out to every group member except the sender.
// The local-presence checks for the whole batch run as one registry critical
// section; the store and queue work for the misses happens after, outside
// the lock. A login or logout racing the fan-out may be missed for this one
// message, which is the documented best-effort behavior.
func (r *Router) groupChat(ctx context.Context, conn model.Conn, env *model.Envelope) {
	members, err := r.store.ListGroupMemberIDs(ctx, env.UserID, env.GroupID)
	if err != nil {
		r.log.Error("group roster lookup failed", "group_id", env.GroupID, "err", err)
		return
	}

	payload := env.Raw()
	for _, id := range r.reg.DeliverBatch(members, payload) {
		r.routeRemote(ctx, id, payload)
	}
}

// route applies the full three-tier delivery decision for one recipient.
func (r *Router) route(ctx context.Context, toID int64, payload []byte) {
	if r.reg.Deliver(toID, payload) {
		return
	}
	r.routeRemote(ctx, toID, payload)
}

// routeRemote is the decision tail for a recipient already known to be
// absent from the local registry: relay if the store says online elsewhere,
// queue otherwise. Adapter failures are logged and the message falls through
// to the next tier where that keeps it alive.
func (r *Router) routeRemote(ctx context.Context, toID int64, payload []byte) {
	user, err := r.store.FindUserByID(ctx, toID)
	if err == nil && user.State == model.StateOnline {
		if err := r.bridge.Publish(ctx, toID, payload); err != nil {
			r.log.Error("bridge publish failed", "to_id", toID, "err", err)
		}
		return
	}
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		r.log.Error("recipient lookup failed", "to_id", toID, "err", err)
	}
	if err := r.queue.Enqueue(ctx, toID, payload); err != nil {
		r.log.Error("offline enqueue failed", "to_id", toID, "err", err)
	}
}
