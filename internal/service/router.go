// Package service implements the presence-and-routing core: the login/logout
// state machine, the three-tier delivery decision (local, cross-process,
// offline) for direct and group messages, and the dispatch table the
// transport feeds parsed envelopes into.
package service

import (
	"context"
	"log/slog"

	"github.com/relaychat/relayd/internal/domain/model"
	"github.com/relaychat/relayd/internal/domain/registry"
)

// HandlerFunc consumes one parsed envelope on behalf of a live connection
// and produces zero or one response write through it.
type HandlerFunc func(ctx context.Context, conn model.Conn, env *model.Envelope)

// Router is the routing engine. One instance lives for the whole process,
// constructed once with its collaborators injected.
type Router struct {
	log    *slog.Logger
	reg    *registry.Registry
	store  Store
	queue  OfflineQueue
	bridge Bridge

	// handlers maps message tag to handler. Built once here, read-only
	// afterwards, so dispatch needs no locking.
	handlers map[model.Tag]HandlerFunc
}

func NewRouter(log *slog.Logger, reg *registry.Registry, store Store, queue OfflineQueue, bridge Bridge) *Router {
	r := &Router{
		log:    log,
		reg:    reg,
		store:  store,
		queue:  queue,
		bridge: bridge,
	}
	r.handlers = map[model.Tag]HandlerFunc{
		model.TagLogin:       r.login,
		model.TagLogout:      r.logout,
		model.TagRegister:    r.register,
		model.TagChat:        r.chat,
		model.TagAddFriend:   r.addFriend,
		model.TagCreateGroup: r.createGroup,
		model.TagJoinGroup:   r.joinGroup,
		model.TagGroupChat:   r.groupChat,
	}
	return r
}

// Dispatch routes one envelope to its handler. Unknown tags resolve to a
// logging no-op: a malformed request must never take down the dispatch path.
func (r *Router) Dispatch(ctx context.Context, conn model.Conn, env *model.Envelope) {
	h, ok := r.handlers[env.Tag]
	if !ok {
		r.log.Error("no handler for message tag", "msgid", env.Tag, "remote", conn.RemoteAddr())
		return
	}
	h(ctx, conn, env)
}

// HandleDisconnect is the transport's connection-closed callback. If the
// connection was never authenticated it is a no-op; otherwise it runs the
// same tail as an explicit logout.
func (r *Router) HandleDisconnect(ctx context.Context, conn model.Conn) {
	userID, ok := r.reg.RemoveByConn(conn)
	if !ok {
		return
	}
	r.log.Info("abnormal disconnect", "user_id", userID, "remote", conn.RemoteAddr())
	if err := r.bridge.Unsubscribe(ctx, userID); err != nil {
		r.log.Warn("bridge unsubscribe failed", "user_id", userID, "err", err)
	}
	if err := r.store.UpdateUserState(ctx, userID, model.StateOffline); err != nil {
		r.log.Error("state update failed", "user_id", userID, "err", err)
	}
}

// HandleInbound is the bridge's delivery callback. If the user is still
// locally connected the payload is forwarded verbatim; otherwise it goes to
// the offline queue. Either way the message is never dropped, only possibly
// delayed until the next login.
func (r *Router) HandleInbound(userID int64, payload []byte) {
	if r.reg.Deliver(userID, payload) {
		return
	}
	if err := r.queue.Enqueue(context.Background(), userID, payload); err != nil {
		r.log.Error("offline enqueue failed", "user_id", userID, "err", err)
	}
}

// Recover bulk-flips every persisted online record to offline. A crashed
// process leaves stale online records behind; this runs once at startup and
// again on operator shutdown. It is idempotent.
func (r *Router) Recover(ctx context.Context) error {
	return r.store.ResetAllOnlineToOffline(ctx)
}
