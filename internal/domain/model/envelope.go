package model

import (
	"encoding/json"
	"fmt"
)

// Tag identifies the operation an envelope carries. The transport routes on
// it; the dispatch table maps each tag to exactly one handler.
type Tag string

const (
	TagLogin       Tag = "login"
	TagLoginAck    Tag = "login_ack"
	TagLogout      Tag = "logout"
	TagRegister    Tag = "register"
	TagRegisterAck Tag = "register_ack"
	TagChat        Tag = "chat"
	TagAddFriend   Tag = "add_friend"
	TagCreateGroup Tag = "create_group"
	TagJoinGroup   Tag = "join_group"
	TagGroupChat   Tag = "group_chat"
)

// Envelope is one parsed chat/control operation. Envelopes are immutable
// once decoded; forwarded and queued messages travel as the original raw
// bytes, never a re-serialization.
type Envelope struct {
	Tag       Tag    `json:"msgid"`
	UserID    int64  `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Secret    string `json:"password,omitempty"`
	ToID      int64  `json:"toid,omitempty"`
	FriendID  int64  `json:"friendid,omitempty"`
	GroupID   int64  `json:"groupid,omitempty"`
	GroupName string `json:"groupname,omitempty"`
	GroupDesc string `json:"groupdesc,omitempty"`
	Body      string `json:"msg,omitempty"`
	// Time is the client-visible timestamp, attached by the sender.
	Time string `json:"time,omitempty"`

	raw []byte
}

// Decode parses one wire frame into an Envelope, retaining the original
// bytes for verbatim forwarding.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Tag == "" {
		return nil, fmt.Errorf("decode envelope: missing msgid")
	}
	e.raw = append([]byte(nil), data...)
	return &e, nil
}

// Raw returns the wire form of the envelope: the bytes it was decoded from
// when it came off a transport, or a fresh serialization otherwise.
func (e *Envelope) Raw() []byte {
	if e.raw != nil {
		return e.raw
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return b
}

// FriendEntry is the friend-list element of the login snapshot.
type FriendEntry struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	State UserState `json:"state"`
}

// MemberEntry is one roster element inside a snapshot group.
type MemberEntry struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	State UserState `json:"state"`
	Role  Role      `json:"role"`
}

// GroupEntry is the group-list element of the login snapshot.
type GroupEntry struct {
	ID      int64         `json:"id"`
	Name    string        `json:"groupname"`
	Desc    string        `json:"groupdesc"`
	Members []MemberEntry `json:"members"`
}

// LoginAck is the login response. On success it is the full login snapshot:
// profile, friends, groups with rosters, and every queued offline message.
type LoginAck struct {
	Tag     Tag               `json:"msgid"`
	Errno   int               `json:"errno"`
	Errmsg  string            `json:"errmsg,omitempty"`
	ID      int64             `json:"id,omitempty"`
	Name    string            `json:"name,omitempty"`
	Friends []FriendEntry     `json:"friends,omitempty"`
	Groups  []GroupEntry      `json:"groups,omitempty"`
	Offline []json.RawMessage `json:"offlinemsgs,omitempty"`
}

// RegisterAck is the registration response, carrying the store-assigned id.
type RegisterAck struct {
	Tag    Tag    `json:"msgid"`
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg,omitempty"`
	ID     int64  `json:"id,omitempty"`
}
