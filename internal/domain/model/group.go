package model

// Role of a member within a group. There are no role transitions: the
// creator role is granted once at group creation, everyone else is normal.
type Role string

const (
	RoleCreator Role = "creator"
	RoleNormal  Role = "normal"
)

// Group is a chat group record. The ID is assigned by the store on insert.
type Group struct {
	ID   int64
	Name string
	Desc string
}

// GroupMember is a user enriched with their role inside one group.
type GroupMember struct {
	ID    int64
	Name  string
	State UserState
	Role  Role
}

// GroupWithMembers is a group plus its full roster, as returned in the
// login snapshot.
type GroupWithMembers struct {
	Group
	Members []GroupMember
}
