package model

// UserState is the persisted presence flag. It is authoritative across
// processes: a user is considered reachable somewhere as long as the store
// says Online, even if this process holds no live connection for them.
type UserState string

const (
	StateOnline  UserState = "online"
	StateOffline UserState = "offline"
)

// User is an account record. The ID is assigned by the store on insert.
type User struct {
	ID     int64
	Name   string
	Secret string
	State  UserState
}
