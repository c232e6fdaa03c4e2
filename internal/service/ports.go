package service

import (
	"context"

	"github.com/relaychat/relayd/internal/domain/model"
)

// Store is the account/social persistence the routing engine depends on.
// Implementations own their records and their concurrency safety; the engine
// never caches store data beyond a single request.
type Store interface {
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
	// FindUserByIDAndSecret returns model.ErrNotFound for an unknown id and
	// for a wrong secret alike; the engine does not distinguish the two.
	FindUserByIDAndSecret(ctx context.Context, id int64, secret string) (*model.User, error)
	// InsertUser assigns u.ID on success.
	InsertUser(ctx context.Context, u *model.User) error
	UpdateUserState(ctx context.Context, id int64, state model.UserState) error
	// ResetAllOnlineToOffline bulk-flips every persisted online record to
	// offline. Crash recovery and operator shutdown both rely on it.
	ResetAllOnlineToOffline(ctx context.Context) error

	ListFriends(ctx context.Context, id int64) ([]model.User, error)
	InsertFriendship(ctx context.Context, ownerID, friendID int64) error

	// CreateGroup assigns g.ID on success.
	CreateGroup(ctx context.Context, g *model.Group) error
	AddMembership(ctx context.Context, userID, groupID int64, role model.Role) error
	ListGroupsWithRosters(ctx context.Context, userID int64) ([]model.GroupWithMembers, error)
	// ListGroupMemberIDs excludes the requesting user from the result.
	ListGroupMemberIDs(ctx context.Context, userID, groupID int64) ([]int64, error)
}

// OfflineQueue stores serialized envelopes for recipients that were
// unreachable, until their next login.
type OfflineQueue interface {
	Enqueue(ctx context.Context, userID int64, payload []byte) error
	// DrainAll returns and deletes every queued payload for userID.
	DrainAll(ctx context.Context, userID int64) ([][]byte, error)
}

// InboundFunc receives payloads published for a user on another process.
// The bridge invokes it on its own delivery goroutine.
type InboundFunc func(userID int64, payload []byte)

// Bridge is the cross-process relay, keyed by per-user channel. Publish is
// fire-and-forget: the publishing process neither waits for nor verifies
// remote receipt.
type Bridge interface {
	Subscribe(ctx context.Context, userID int64) error
	Unsubscribe(ctx context.Context, userID int64) error
	Publish(ctx context.Context, userID int64, payload []byte) error
	// Bind registers the inbound callback. Called once at startup, before
	// the bridge starts delivering.
	Bind(fn InboundFunc)
}
