// models/account.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a player account. Identity lives in the auth service; this row only
// mirrors the profile fields we need and owns the two credit balances.
type User struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email     *string `gorm:"uniqueIndex" json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	IsAdmin   bool    `gorm:"not null;default:false" json:"is_admin"`

	// Credits is the wagering/contribution balance. WithdrawableCredits is the
	// separately tracked pool that may be cashed out.
	Credits             int64 `gorm:"not null;default:0;check:credits >= 0" json:"credits"`
	WithdrawableCredits int64 `gorm:"not null;default:0;check:withdrawable_credits >= 0" json:"withdrawable_credits"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// Team is a clan. Only teams stake wagers.
type Team struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Tag       string  `gorm:"type:varchar(10);not null" json:"tag"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	OwnerID   string  `gorm:"index;not null" json:"owner_id"`
	Credits   int64   `gorm:"not null;default:0;check:credits >= 0" json:"credits"`
	Wins      int64   `gorm:"not null;default:0" json:"wins"`
	Losses    int64   `gorm:"not null;default:0" json:"losses"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`

	Timestamps
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

const (
	TeamRoleOwner  = "owner"
	TeamRoleMember = "member"
)

// TeamMember joins users to teams. Roster management is owned elsewhere; the
// settlement core only reads it for membership checks.
type TeamMember struct {
	ID       string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TeamID   string    `gorm:"uniqueIndex:idx_team_member;not null" json:"team_id"`
	UserID   string    `gorm:"uniqueIndex:idx_team_member;index;not null" json:"user_id"`
	Role     string    `gorm:"type:varchar(50);not null;default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
