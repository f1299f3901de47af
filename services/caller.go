// services/caller.go
package services

import (
	"errors"
	"strings"

	"clan-wager-system/models"

	"gorm.io/gorm"
)

const RoleAdmin = "admin"

// Caller is the authenticated identity forwarded by the gateway.
type Caller struct {
	UserID string
	Roles  []string
}

func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin is the single admin predicate: the admin role on the request, or
// the is_admin flag on the user row.
func IsAdmin(db *gorm.DB, caller Caller) (bool, error) {
	if caller.HasRole(RoleAdmin) {
		return true, nil
	}
	if caller.UserID == "" {
		return false, nil
	}
	var user models.User
	err := db.Select("id", "is_admin").Where("id = ?", caller.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func requireAdmin(db *gorm.DB, caller Caller) error {
	ok, err := IsAdmin(db, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// isTeamMember treats the owner as a member even without a roster row.
func isTeamMember(db *gorm.DB, team *models.Team, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if team.OwnerID == userID {
		return true, nil
	}
	var count int64
	err := db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, userID).
		Count(&count).Error
	return count > 0, err
}

func isTeamOwner(db *gorm.DB, team *models.Team, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if team.OwnerID == userID {
		return true, nil
	}
	var count int64
	err := db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ? AND role = ?", team.ID, userID, models.TeamRoleOwner).
		Count(&count).Error
	return count > 0, err
}

func findTeam(db *gorm.DB, id string) (*models.Team, error) {
	var team models.Team
	if err := db.Where("id = ?", id).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("team", id)
		}
		return nil, err
	}
	return &team, nil
}
