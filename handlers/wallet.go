// handlers/wallet.go
package handlers

import (
	"clan-wager-system/middleware"
	"clan-wager-system/models"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	Wallet      *services.WalletService
	Withdrawals *services.WithdrawalService
	Ledger      *services.Ledger
}

func pageFrom(c *fiber.Ctx) services.Page {
	return services.Page{Page: c.QueryInt("page", 1), Size: c.QueryInt("size", 20)}
}

func (h *WalletHandler) Balances(c *fiber.Ctx) error {
	user, err := h.Wallet.Balances(middleware.CallerFrom(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"credits":              user.Credits,
		"withdrawable_credits": user.WithdrawableCredits,
	})
}

func (h *WalletHandler) CreditPackages(c *fiber.Ctx) error {
	return c.JSON(h.Wallet.CreditPackages())
}

func (h *WalletHandler) Transactions(c *fiber.Ctx) error {
	p := pageFrom(c)
	entries, total, err := h.Ledger.UserEntries(middleware.CallerFrom(c).UserID, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": entries, "total": total, "page": p.Page})
}

func (h *WalletHandler) TeamTransactions(c *fiber.Ctx) error {
	p := pageFrom(c)
	entries, total, err := h.Ledger.TeamEntries(c.Params("id"), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": entries, "total": total, "page": p.Page})
}

func (h *WalletHandler) Contribute(c *fiber.Ctx) error {
	var req struct {
		Credits int64 `json:"credits"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	team, err := h.Wallet.ContributeToTeam(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.Credits)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(team)
}

func (h *WalletHandler) Payout(c *fiber.Ctx) error {
	var req struct {
		RecipientID string `json:"recipient_id"`
		Credits     int64  `json:"credits"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	team, err := h.Wallet.PayoutFromTeam(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.RecipientID, req.Credits)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(team)
}

func (h *WalletHandler) WithdrawalQuote(c *fiber.Ctx) error {
	credits := int64(c.QueryInt("credits", 0))
	return c.JSON(h.Withdrawals.Quote(credits))
}

func (h *WalletHandler) RequestWithdrawal(c *fiber.Ctx) error {
	var req struct {
		Credits     int64              `json:"credits"`
		BankDetails models.BankDetails `json:"bank_details"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	w, err := h.Withdrawals.RequestWithdrawal(c.UserContext(), middleware.CallerFrom(c), req.Credits, req.BankDetails)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *WalletHandler) MyWithdrawals(c *fiber.Ctx) error {
	out, err := h.Withdrawals.UserWithdrawals(middleware.CallerFrom(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
