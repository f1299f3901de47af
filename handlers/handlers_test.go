package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"clan-wager-system/config"
	"clan-wager-system/models"
	"clan-wager-system/services"
	"clan-wager-system/testutil"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	ledger := services.NewLedger(db)
	policy := config.DefaultPolicy()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(app, Deps{
		DB:          db,
		Ledger:      ledger,
		Matches:     services.NewMatchService(db, ledger, policy, nil),
		Campaigns:   services.NewCampaignService(db, policy, nil),
		Withdrawals: services.NewWithdrawalService(db, ledger, policy, nil),
		Wallet:      services.NewWalletService(db, ledger, nil),
	})
	return &testServer{app: app, db: db}
}

// call sends a JSON request as userID ("" for no identity) and decodes the
// response body into out when out is non-nil.
func (s *testServer) call(t *testing.T, method, path, userID string, body, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestWagerFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ownerA := testutil.CreateUser(t, s.db, 0, 0)
	ownerB := testutil.CreateUser(t, s.db, 0, 0)
	teamA := testutil.CreateTeam(t, s.db, "Alpha", ownerA, 500)
	teamB := testutil.CreateTeam(t, s.db, "Bravo", ownerB, 300)

	var match models.Match
	status := s.call(t, "POST", "/matches", ownerA.ID, fiber.Map{
		"challenger_team_id": teamA.ID,
		"challenged_team_id": teamB.ID,
		"wager_credits":      100,
	}, &match)
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d", status)
	}

	// The share link works without an identity.
	var shared models.Match
	if status := s.call(t, "GET", "/battles/"+*match.ShareToken, "", nil, &shared); status != fiber.StatusOK || shared.ID != match.ID {
		t.Fatalf("share link = %d, %s", status, shared.ID)
	}

	var e errorBody
	if status := s.call(t, "POST", "/matches/"+match.ID+"/accept", ownerA.ID, nil, &e); status != fiber.StatusForbidden {
		t.Errorf("challenger accepting = %d, want 403", status)
	}
	if status := s.call(t, "POST", "/matches/"+match.ID+"/accept", ownerB.ID, nil, nil); status != fiber.StatusOK {
		t.Fatalf("accept status = %d", status)
	}
	if status := s.call(t, "POST", "/matches/"+match.ID+"/accept", ownerB.ID, nil, &e); status != fiber.StatusConflict || e.Error != "invalid_state" {
		t.Errorf("second accept = %d %q, want 409 invalid_state", status, e.Error)
	}
	if status := s.call(t, "POST", "/matches/"+match.ID+"/start", ownerA.ID, nil, nil); status != fiber.StatusOK {
		t.Fatalf("start status = %d", status)
	}

	if status := s.call(t, "POST", "/matches/"+match.ID+"/confirm", ownerA.ID, fiber.Map{"winner_id": "nobody"}, &e); status != fiber.StatusUnprocessableEntity {
		t.Errorf("invalid winner = %d, want 422", status)
	}
	var res services.ConfirmResult
	s.call(t, "POST", "/matches/"+match.ID+"/confirm", ownerA.ID, fiber.Map{"winner_id": teamA.ID}, &res)
	if res.Match == nil || res.Match.Status != models.MatchStatusConfirming {
		t.Fatalf("first confirm = %+v", res.Match)
	}
	res = services.ConfirmResult{}
	s.call(t, "POST", "/matches/"+match.ID+"/confirm", ownerB.ID, fiber.Map{"winner_id": teamA.ID}, &res)
	if res.Match == nil || res.Match.Status != models.MatchStatusCompleted || res.Settlement == nil || res.Settlement.WinnerPayout != 180 {
		t.Fatalf("second confirm = %+v", res)
	}
	if got := testutil.TeamCredits(t, s.db, teamA.ID); got != 580 {
		t.Errorf("winner credits = %d, want 580", got)
	}

	var ledger struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
	}
	if status := s.call(t, "GET", "/teams/"+teamA.ID+"/transactions", ownerA.ID, nil, &ledger); status != fiber.StatusOK || ledger.Total != 2 {
		t.Errorf("team ledger = %d, total %d; want 2 entries", status, ledger.Total)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	owner := testutil.CreateUser(t, s.db, 0, 0)
	other := testutil.CreateUser(t, s.db, 0, 0)
	teamA := testutil.CreateTeam(t, s.db, "Alpha", owner, 10)
	teamB := testutil.CreateTeam(t, s.db, "Bravo", other, 10)

	var e errorBody
	if status := s.call(t, "GET", "/matches/missing", owner.ID, nil, &e); status != fiber.StatusNotFound || e.Error != "not_found" {
		t.Errorf("missing match = %d %q", status, e.Error)
	}
	if status := s.call(t, "POST", "/matches", owner.ID, fiber.Map{
		"challenger_team_id": teamA.ID, "challenged_team_id": teamB.ID, "wager_credits": 50,
	}, &e); status != fiber.StatusBadRequest || e.Error != "insufficient_funds" {
		t.Errorf("overdraw = %d %q", status, e.Error)
	}
	if status := s.call(t, "POST", "/matches", owner.ID, fiber.Map{
		"challenger_team_id": teamA.ID, "challenged_team_id": teamA.ID, "wager_credits": 5,
	}, &e); status != fiber.StatusBadRequest || e.Error != "validation" {
		t.Errorf("self challenge = %d %q", status, e.Error)
	}
	if status := s.call(t, "GET", "/wallet", "", nil, nil); status != fiber.StatusUnauthorized {
		t.Errorf("no identity = %d, want 401", status)
	}
	if status := s.call(t, "GET", "/admin/withdrawals", owner.ID, nil, nil); status != fiber.StatusForbidden {
		t.Errorf("non-admin on admin route = %d, want 403", status)
	}
}

func TestWithdrawalOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateUser(t, s.db, 0, 200)
	admin := testutil.CreateAdmin(t, s.db)

	var quote services.Quote
	s.call(t, "GET", "/withdrawals/quote?credits=100", user.ID, nil, &quote)
	if quote.TotalDeducted != 105 {
		t.Errorf("quote = %+v", quote)
	}

	var req models.WithdrawalRequest
	status := s.call(t, "POST", "/withdrawals", user.ID, fiber.Map{
		"credits": 100,
		"bank_details": fiber.Map{
			"bank_name": "First Bank", "account_number": "0123456789", "account_name": "Ada Player",
		},
	}, &req)
	if status != fiber.StatusCreated {
		t.Fatalf("request status = %d", status)
	}

	var rejected models.WithdrawalRequest
	status = s.call(t, "POST", "/admin/withdrawals/"+req.ID+"/reject", admin.ID, fiber.Map{"admin_notes": "wrong name"}, &rejected)
	if status != fiber.StatusOK || rejected.Status != models.WithdrawalStatusRejected {
		t.Fatalf("reject = %d %+v", status, rejected)
	}

	var balances map[string]int64
	s.call(t, "GET", "/wallet", user.ID, nil, &balances)
	if balances["withdrawable_credits"] != 200 {
		t.Errorf("balances = %v, want 200 withdrawable", balances)
	}
}

func TestCampaignRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateAdmin(t, s.db)
	ownerA := testutil.CreateUser(t, s.db, 0, 0)
	ownerB := testutil.CreateUser(t, s.db, 0, 0)
	teamA := testutil.CreateTeam(t, s.db, "Alpha", ownerA, 0)
	teamB := testutil.CreateTeam(t, s.db, "Bravo", ownerB, 0)
	campaign := testutil.CreateCampaign(t, s.db, 1000, 100)

	for _, j := range []struct{ user, team string }{{ownerA.ID, teamA.ID}, {ownerB.ID, teamB.ID}} {
		if status := s.call(t, "POST", "/campaigns/"+campaign.ID+"/join", j.user, fiber.Map{"team_id": j.team}, nil); status != fiber.StatusCreated {
			t.Fatalf("join status = %d", status)
		}
	}

	var can struct {
		CanBattle   bool  `json:"can_battle"`
		BattleCount int64 `json:"battle_count"`
		MaxBattles  int64 `json:"max_battles"`
	}
	path := "/campaigns/" + campaign.ID + "/can-battle?team1_id=" + teamA.ID + "&team2_id=" + teamB.ID
	if status := s.call(t, "GET", path, "", nil, &can); status != fiber.StatusOK || !can.CanBattle || can.MaxBattles != 2 {
		t.Fatalf("can-battle = %d %+v", status, can)
	}

	var match models.Match
	if status := s.call(t, "POST", "/campaigns/"+campaign.ID+"/challenge", ownerA.ID, fiber.Map{
		"challenger_team_id": teamA.ID, "challenged_team_id": teamB.ID,
	}, &match); status != fiber.StatusCreated || match.WagerCredits != 0 {
		t.Fatalf("challenge = %d %+v", status, match)
	}

	var list []models.Campaign
	if status := s.call(t, "GET", "/campaigns?status=active", "", nil, &list); status != fiber.StatusOK || len(list) != 1 || list[0].ParticipantsCount != 2 {
		t.Errorf("list = %d %+v", status, list)
	}

	var ended models.Campaign
	if status := s.call(t, "POST", "/admin/campaigns/"+campaign.ID+"/end", admin.ID, nil, &ended); status != fiber.StatusOK || ended.Status != models.CampaignStatusCompleted {
		t.Errorf("end = %d %s", status, ended.Status)
	}
}
