// handlers/routes.go
package handlers

import (
	"clan-wager-system/middleware"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Ledger      *services.Ledger
	Matches     *services.MatchService
	Campaigns   *services.CampaignService
	Withdrawals *services.WithdrawalService
	Wallet      *services.WalletService
	Auth        middleware.TokenValidator // nil disables the ledger stream
}

// SetupRoutes registers every route. Order matters: public routes first,
// then the stream, then /admin, then the catch-all user-context group.
func SetupRoutes(app *fiber.App, d Deps) {
	matches := &MatchHandler{Matches: d.Matches}
	campaigns := &CampaignHandler{Campaigns: d.Campaigns}
	wallet := &WalletHandler{Wallet: d.Wallet, Withdrawals: d.Withdrawals, Ledger: d.Ledger}
	admin := &AdminHandler{Withdrawals: d.Withdrawals, Ledger: d.Ledger}

	// 🔓 Public
	app.Get("/battles/:token", matches.GetByShareToken)
	app.Get("/credit-packages", wallet.CreditPackages)
	app.Get("/campaigns", campaigns.List)
	app.Get("/campaigns/:id", campaigns.Get)
	app.Get("/campaigns/:id/participants", campaigns.Participants)
	app.Get("/campaigns/:id/can-battle", campaigns.CanBattle)

	// 📡 Ledger stream (query-token auth)
	if d.Auth != nil {
		app.Get("/stream/ledger", middleware.SSEAuthMiddleware(d.Auth), d.Ledger.StreamUserEntriesSSE)
	}

	// 🔐 Admin
	adminGroup := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin(d.DB))
	adminGroup.Get("/matches/disputed", matches.Disputed)
	adminGroup.Get("/matches/:id/ledger", admin.MatchLedger)
	adminGroup.Post("/matches/:id/resolve", matches.Resolve)
	adminGroup.Post("/campaigns", campaigns.Create)
	adminGroup.Post("/campaigns/:id/end", campaigns.End)
	adminGroup.Post("/campaigns/:id/cancel", campaigns.Cancel)
	adminGroup.Get("/withdrawals", admin.ListWithdrawals)
	adminGroup.Post("/withdrawals/:id/approve", admin.ApproveWithdrawal)
	adminGroup.Post("/withdrawals/:id/reject", admin.RejectWithdrawal)
	adminGroup.Get("/ledger/reconcile", admin.Reconcile)

	// 🔐 Authenticated
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/matches", matches.Create)
	secured.Get("/matches/:id", matches.Get)
	secured.Post("/matches/:id/accept", matches.Accept)
	secured.Post("/matches/:id/decline", matches.Decline)
	secured.Post("/matches/:id/start", matches.Start)
	secured.Post("/matches/:id/confirm", matches.Confirm)

	secured.Get("/teams/:id/matches", matches.TeamMatches)
	secured.Get("/teams/:id/challenges", matches.PendingChallenges)
	secured.Get("/teams/:id/transactions", wallet.TeamTransactions)
	secured.Post("/teams/:id/contribute", wallet.Contribute)
	secured.Post("/teams/:id/payout", wallet.Payout)

	secured.Get("/campaigns/:id/matches", campaigns.Matches)
	secured.Post("/campaigns/:id/join", campaigns.Join)
	secured.Post("/campaigns/:id/challenge", campaigns.Challenge)

	secured.Get("/wallet", wallet.Balances)
	secured.Get("/transactions", wallet.Transactions)
	secured.Get("/withdrawals", wallet.MyWithdrawals)
	secured.Get("/withdrawals/quote", wallet.WithdrawalQuote)
	secured.Post("/withdrawals", wallet.RequestWithdrawal)
}
