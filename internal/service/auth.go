package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/relaychat/relayd/internal/domain/model"
)

// login implements the Offline -> Online transition.
//
// Duplicate logins are rejected against the persisted state field: the other
// live session is solely responsible for flipping it back to offline on its
// own logout, so a second login anywhere sees online and fails. The guard is
// best-effort across processes (two processes can race the read), which
// matches the store-mediated design rather than strengthening it.
func (r *Router) login(ctx context.Context, conn model.Conn, env *model.Envelope) {
	user, err := r.store.FindUserByIDAndSecret(ctx, env.UserID, env.Secret)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			r.log.Error("login lookup failed", "user_id", env.UserID, "err", err)
		}
		r.writeJSON(conn, model.LoginAck{
			Tag:    model.TagLoginAck,
			Errno:  model.ErrnoInvalidCredentials,
			Errmsg: model.ErrInvalidCredentials.Error(),
		})
		return
	}

	if user.State == model.StateOnline {
		r.writeJSON(conn, model.LoginAck{
			Tag:    model.TagLoginAck,
			Errno:  model.ErrnoAlreadyLoggedIn,
			Errmsg: model.ErrAlreadyLoggedIn.Error(),
		})
		return
	}

	// Registry insert and channel subscribe both precede the snapshot write,
	// so a message arriving the instant after login is delivered live instead
	// of landing in the offline queue.
	r.reg.Put(user.ID, conn)
	if err := r.bridge.Subscribe(ctx, user.ID); err != nil {
		r.log.Error("bridge subscribe failed", "user_id", user.ID, "err", err)
	}
	if err := r.store.UpdateUserState(ctx, user.ID, model.StateOnline); err != nil {
		r.log.Error("state update failed", "user_id", user.ID, "err", err)
	}

	ack := model.LoginAck{
		Tag:   model.TagLoginAck,
		Errno: model.ErrnoOK,
		ID:    user.ID,
		Name:  user.Name,
	}

	// DrainAll deletes what it returns, so the queued messages exist in
	// exactly one place afterwards: this snapshot.
	offline, err := r.queue.DrainAll(ctx, user.ID)
	if err != nil {
		r.log.Error("offline drain failed", "user_id", user.ID, "err", err)
	}
	for _, payload := range offline {
		ack.Offline = append(ack.Offline, json.RawMessage(payload))
	}

	friends, err := r.store.ListFriends(ctx, user.ID)
	if err != nil {
		r.log.Error("friend list failed", "user_id", user.ID, "err", err)
	}
	for _, f := range friends {
		ack.Friends = append(ack.Friends, model.FriendEntry{ID: f.ID, Name: f.Name, State: f.State})
	}

	groups, err := r.store.ListGroupsWithRosters(ctx, user.ID)
	if err != nil {
		r.log.Error("group list failed", "user_id", user.ID, "err", err)
	}
	for _, g := range groups {
		entry := model.GroupEntry{ID: g.ID, Name: g.Name, Desc: g.Desc}
		for _, m := range g.Members {
			entry.Members = append(entry.Members, model.MemberEntry{
				ID:    m.ID,
				Name:  m.Name,
				State: m.State,
				Role:  m.Role,
			})
		}
		ack.Groups = append(ack.Groups, entry)
	}

	r.log.Info("user logged in", "user_id", user.ID, "remote", conn.RemoteAddr())
	r.writeJSON(conn, ack)
}

// logout implements the explicit Online -> Offline transition. Idempotent:
// a second call is a no-op beyond the store write.
func (r *Router) logout(ctx context.Context, conn model.Conn, env *model.Envelope) {
	r.reg.Remove(env.UserID)
	if err := r.bridge.Unsubscribe(ctx, env.UserID); err != nil {
		r.log.Warn("bridge unsubscribe failed", "user_id", env.UserID, "err", err)
	}
	if err := r.store.UpdateUserState(ctx, env.UserID, model.StateOffline); err != nil {
		r.log.Error("state update failed", "user_id", env.UserID, "err", err)
	}
	r.log.Info("user logged out", "user_id", env.UserID)
}

func (r *Router) register(ctx context.Context, conn model.Conn, env *model.Envelope) {
	user := &model.User{
		Name:   env.Name,
		Secret: env.Secret,
		State:  model.StateOffline,
	}
	if err := r.store.InsertUser(ctx, user); err != nil {
		r.log.Error("registration failed", "name", env.Name, "err", err)
		r.writeJSON(conn, model.RegisterAck{
			Tag:    model.TagRegisterAck,
			Errno:  model.ErrnoRegistrationFailed,
			Errmsg: model.ErrRegistrationFailed.Error(),
		})
		return
	}
	r.writeJSON(conn, model.RegisterAck{
		Tag:   model.TagRegisterAck,
		Errno: model.ErrnoOK,
		ID:    user.ID,
	})
}

func (r *Router) writeJSON(conn model.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Error("response marshal failed", "err", err)
		return
	}
	if err := conn.Write(b); err != nil {
		r.log.Warn("response write failed", "remote", conn.RemoteAddr(), "err", err)
	}
}
