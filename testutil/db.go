// testutil/db.go

// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"clan-wager-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every table migrated.
// The pool is pinned to one connection, so writers are serialized the way
// row locks serialize them in Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given balances.
func CreateUser(t *testing.T, db *gorm.DB, credits, withdrawable int64) *models.User {
	t.Helper()
	u := &models.User{Credits: credits, WithdrawableCredits: withdrawable}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateAdmin inserts a user flagged as admin.
func CreateAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{IsAdmin: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return u
}

// CreateTeam inserts a team owned by owner, who is also added to the roster.
func CreateTeam(t *testing.T, db *gorm.DB, name string, owner *models.User, credits int64) *models.Team {
	t.Helper()
	team := &models.Team{Name: name, Tag: tagFor(name), OwnerID: owner.ID, Credits: credits}
	if err := db.Create(team).Error; err != nil {
		t.Fatalf("create team: %v", err)
	}
	AddMember(t, db, team, owner, models.TeamRoleOwner)
	return team
}

func AddMember(t *testing.T, db *gorm.DB, team *models.Team, user *models.User, role string) {
	t.Helper()
	if err := db.Create(&models.TeamMember{TeamID: team.ID, UserID: user.ID, Role: role}).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
}

// CreateCampaign inserts an active campaign that started an hour ago.
func CreateCampaign(t *testing.T, db *gorm.DB, pool, rewardPerWin int64) *models.Campaign {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Campaign{
		Name:                 "Season " + uuid.NewString()[:4],
		PrizePoolCredits:     pool,
		RemainingPoolCredits: pool,
		RewardPerWin:         rewardPerWin,
		Status:               models.CampaignStatusActive,
		StartDate:            now.Add(-time.Hour),
		EndDate:              now.Add(24 * time.Hour),
		CreatedBy:            "admin",
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}

// TeamCredits reloads a team's balance.
func TeamCredits(t *testing.T, db *gorm.DB, teamID string) int64 {
	t.Helper()
	var team models.Team
	if err := db.Where("id = ?", teamID).First(&team).Error; err != nil {
		t.Fatalf("load team: %v", err)
	}
	return team.Credits
}

// ReloadUser fetches a user's current row.
func ReloadUser(t *testing.T, db *gorm.DB, userID string) *models.User {
	t.Helper()
	var u models.User
	if err := db.Where("id = ?", userID).First(&u).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return &u
}

func tagFor(name string) string {
	if len(name) > 4 {
		return name[:4]
	}
	return name
}
