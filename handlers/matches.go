// handlers/matches.go
package handlers

import (
	"clan-wager-system/middleware"
	"clan-wager-system/models"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

type MatchHandler struct {
	Matches *services.MatchService
}

type winnerRequest struct {
	WinnerID string `json:"winner_id"`
}

func (h *MatchHandler) Create(c *fiber.Ctx) error {
	var in services.CreateMatchInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	match, err := h.Matches.CreateMatch(c.UserContext(), middleware.CallerFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(match)
}

func (h *MatchHandler) Get(c *fiber.Ctx) error {
	match, err := h.Matches.GetMatch(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

// GetByShareToken serves public battle links.
func (h *MatchHandler) GetByShareToken(c *fiber.Ctx) error {
	match, err := h.Matches.GetByShareToken(c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) Accept(c *fiber.Ctx) error {
	match, err := h.Matches.AcceptMatch(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) Decline(c *fiber.Ctx) error {
	match, err := h.Matches.DeclineMatch(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) Start(c *fiber.Ctx) error {
	match, err := h.Matches.StartMatch(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) Confirm(c *fiber.Ctx) error {
	var req winnerRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	res, err := h.Matches.ConfirmWinner(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.WinnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *MatchHandler) Resolve(c *fiber.Ctx) error {
	var req winnerRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	res, err := h.Matches.AdminResolveDispute(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.WinnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *MatchHandler) TeamMatches(c *fiber.Ctx) error {
	matches, err := h.Matches.TeamMatches(c.Params("id"), models.MatchStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}

func (h *MatchHandler) PendingChallenges(c *fiber.Ctx) error {
	matches, err := h.Matches.PendingChallenges(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}

func (h *MatchHandler) Disputed(c *fiber.Ctx) error {
	matches, err := h.Matches.DisputedMatches(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}
