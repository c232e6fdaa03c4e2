package service

import (
	"context"

	"github.com/relaychat/relayd/internal/domain/model"
)

// Social and group mutations produce no response envelope. Failures are
// logged and the operation becomes a no-op; the caller gets no explicit
// failure signal. That is a known weak point of the protocol, kept as-is.

func (r *Router) addFriend(ctx context.Context, conn model.Conn, env *model.Envelope) {
	if err := r.store.InsertFriendship(ctx, env.UserID, env.FriendID); err != nil {
		r.log.Error("friendship insert failed", "owner_id", env.UserID, "friend_id", env.FriendID, "err", err)
	}
}

func (r *Router) createGroup(ctx context.Context, conn model.Conn, env *model.Envelope) {
	group := &model.Group{Name: env.GroupName, Desc: env.GroupDesc}
	if err := r.store.CreateGroup(ctx, group); err != nil {
		r.log.Error("group create failed", "name", env.GroupName, "err", err)
		return
	}
	// Creator membership is written only once the group itself exists.
	if err := r.store.AddMembership(ctx, env.UserID, group.ID, model.RoleCreator); err != nil {
		r.log.Error("creator membership insert failed", "group_id", group.ID, "err", err)
	}
}

func (r *Router) joinGroup(ctx context.Context, conn model.Conn, env *model.Envelope) {
	if err := r.store.AddMembership(ctx, env.UserID, env.GroupID, model.RoleNormal); err != nil {
		r.log.Error("membership insert failed", "group_id", env.GroupID, "user_id", env.UserID, "err", err)
	}
}
