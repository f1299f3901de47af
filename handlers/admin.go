// handlers/admin.go
package handlers

import (
	"clan-wager-system/middleware"
	"clan-wager-system/models"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Withdrawals *services.WithdrawalService
	Ledger      *services.Ledger
}

type notesRequest struct {
	AdminNotes *string `json:"admin_notes"`
}

func (h *AdminHandler) ListWithdrawals(c *fiber.Ctx) error {
	out, err := h.Withdrawals.ListWithdrawals(c.UserContext(), middleware.CallerFrom(c), models.WithdrawalStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

func (h *AdminHandler) ApproveWithdrawal(c *fiber.Ctx) error {
	var req notesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	w, err := h.Withdrawals.ApproveWithdrawal(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.AdminNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(w)
}

func (h *AdminHandler) RejectWithdrawal(c *fiber.Ctx) error {
	var req notesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	w, err := h.Withdrawals.RejectWithdrawal(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.AdminNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(w)
}

func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	imbalances, err := h.Ledger.Reconcile()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"balanced":   len(imbalances) == 0,
		"imbalances": imbalances,
	})
}

func (h *AdminHandler) MatchLedger(c *fiber.Ctx) error {
	entries, err := h.Ledger.MatchEntries(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}
