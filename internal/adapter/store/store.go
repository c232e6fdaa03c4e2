// Package store is the gorm/MySQL implementation of the account, social and
// offline-queue persistence the routing engine depends on. All access goes
// through parameterized queries; the engine never sees SQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/relaychat/relayd/internal/domain/model"
)

type userRow struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:name;size:64;uniqueIndex;not null"`
	Secret string `gorm:"column:password;size:128;not null"`
	State  string `gorm:"column:state;size:16;not null;default:offline"`
}

func (userRow) TableName() string { return "users" }

type friendRow struct {
	OwnerID  int64 `gorm:"column:owner_id;primaryKey"`
	FriendID int64 `gorm:"column:friend_id;primaryKey"`
}

func (friendRow) TableName() string { return "friends" }

// chat_groups, not groups: GROUPS is reserved in MySQL 8.
type groupRow struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;size:64;not null"`
	Desc string `gorm:"column:description;size:256"`
}

func (groupRow) TableName() string { return "chat_groups" }

type groupMemberRow struct {
	GroupID int64  `gorm:"column:group_id;primaryKey"`
	UserID  int64  `gorm:"column:user_id;primaryKey"`
	Role    string `gorm:"column:role;size:16;not null"`
}

func (groupMemberRow) TableName() string { return "group_members" }

type offlineRow struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID  int64  `gorm:"column:user_id;index;not null"`
	Payload []byte `gorm:"column:payload;type:blob;not null"`
}

func (offlineRow) TableName() string { return "offline_messages" }

// Open connects to MySQL and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&userRow{}, &friendRow{}, &groupRow{}, &groupMemberRow{}, &offlineRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Store implements service.Store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// FindUserByIDAndSecret verifies the bcrypt hash. Unknown id and wrong
// secret are indistinguishable to the caller.
func (s *Store) FindUserByIDAndSecret(ctx context.Context, id int64, secret string) (*model.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(row.Secret), []byte(secret)) != nil {
		return nil, model.ErrNotFound
	}
	return row.toDomain(), nil
}

func (s *Store) InsertUser(ctx context.Context, u *model.User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	row := userRow{Name: u.Name, Secret: string(hash), State: string(model.StateOffline)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = row.ID
	return nil
}

func (s *Store) UpdateUserState(ctx context.Context, id int64, state model.UserState) error {
	err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("state", string(state)).Error
	if err != nil {
		return fmt.Errorf("update state for %d: %w", id, err)
	}
	return nil
}

func (s *Store) ResetAllOnlineToOffline(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&userRow{}).
		Where("state = ?", string(model.StateOnline)).
		Update("state", string(model.StateOffline)).Error
	if err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	return nil
}

func (s *Store) ListFriends(ctx context.Context, id int64) ([]model.User, error) {
	var rows []userRow
	err := s.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.name, users.state").
		Joins("JOIN friends ON friends.friend_id = users.id").
		Where("friends.owner_id = ?", id).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list friends of %d: %w", id, err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

func (s *Store) InsertFriendship(ctx context.Context, ownerID, friendID int64) error {
	err := s.db.WithContext(ctx).Create(&friendRow{OwnerID: ownerID, FriendID: friendID}).Error
	if err != nil {
		return fmt.Errorf("insert friendship %d->%d: %w", ownerID, friendID, err)
	}
	return nil
}

func (s *Store) CreateGroup(ctx context.Context, g *model.Group) error {
	row := groupRow{Name: g.Name, Desc: g.Desc}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create group %q: %w", g.Name, err)
	}
	g.ID = row.ID
	return nil
}

func (s *Store) AddMembership(ctx context.Context, userID, groupID int64, role model.Role) error {
	err := s.db.WithContext(ctx).Create(&groupMemberRow{GroupID: groupID, UserID: userID, Role: string(role)}).Error
	if err != nil {
		return fmt.Errorf("add membership user %d group %d: %w", userID, groupID, err)
	}
	return nil
}

func (s *Store) ListGroupsWithRosters(ctx context.Context, userID int64) ([]model.GroupWithMembers, error) {
	var gids []int64
	err := s.db.WithContext(ctx).Model(&groupMemberRow{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &gids).Error
	if err != nil {
		return nil, fmt.Errorf("list groups of %d: %w", userID, err)
	}
	if len(gids) == 0 {
		return nil, nil
	}

	var groups []groupRow
	if err := s.db.WithContext(ctx).Where("id IN ?", gids).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	out := make([]model.GroupWithMembers, 0, len(groups))
	for _, g := range groups {
		type memberJoin struct {
			ID    int64
			Name  string
			State string
			Role  string
		}
		var members []memberJoin
		err := s.db.WithContext(ctx).
			Table("users").
			Select("users.id, users.name, users.state, group_members.role").
			Joins("JOIN group_members ON group_members.user_id = users.id").
			Where("group_members.group_id = ?", g.ID).
			Find(&members).Error
		if err != nil {
			return nil, fmt.Errorf("load roster of group %d: %w", g.ID, err)
		}
		gwm := model.GroupWithMembers{Group: model.Group{ID: g.ID, Name: g.Name, Desc: g.Desc}}
		for _, m := range members {
			gwm.Members = append(gwm.Members, model.GroupMember{
				ID:    m.ID,
				Name:  m.Name,
				State: model.UserState(m.State),
				Role:  model.Role(m.Role),
			})
		}
		out = append(out, gwm)
	}
	return out, nil
}

func (s *Store) ListGroupMemberIDs(ctx context.Context, userID, groupID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&groupMemberRow{}).
		Where("group_id = ? AND user_id <> ?", groupID, userID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list members of group %d: %w", groupID, err)
	}
	return ids, nil
}

func (r *userRow) toDomain() *model.User {
	return &model.User{
		ID:    r.ID,
		Name:  r.Name,
		State: model.UserState(r.State),
	}
}
