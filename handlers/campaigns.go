// handlers/campaigns.go
package handlers

import (
	"clan-wager-system/middleware"
	"clan-wager-system/models"
	"clan-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

type CampaignHandler struct {
	Campaigns *services.CampaignService
}

func (h *CampaignHandler) List(c *fiber.Ctx) error {
	campaigns, err := h.Campaigns.ListCampaigns(models.CampaignStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaigns)
}

func (h *CampaignHandler) Get(c *fiber.Ctx) error {
	campaign, err := h.Campaigns.GetCampaign(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaign)
}

func (h *CampaignHandler) Participants(c *fiber.Ctx) error {
	participants, err := h.Campaigns.Participants(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(participants)
}

func (h *CampaignHandler) Matches(c *fiber.Ctx) error {
	matches, err := h.Campaigns.CampaignMatches(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}

func (h *CampaignHandler) CanBattle(c *fiber.Ctx) error {
	team1, team2 := c.Query("team1_id"), c.Query("team2_id")
	if team1 == "" || team2 == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   services.KindValidation,
			"message": "team1_id and team2_id are required",
		})
	}
	ok, count, err := h.Campaigns.CanBattle(c.Params("id"), team1, team2)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"can_battle":   ok,
		"battle_count": count,
		"max_battles":  h.Campaigns.Policy.MaxCampaignBattles,
	})
}

func (h *CampaignHandler) Join(c *fiber.Ctx) error {
	var req struct {
		TeamID string `json:"team_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	participant, err := h.Campaigns.JoinCampaign(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.TeamID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(participant)
}

func (h *CampaignHandler) Challenge(c *fiber.Ctx) error {
	var in services.ChallengeInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	match, err := h.Campaigns.ChallengeInCampaign(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(match)
}

func (h *CampaignHandler) Create(c *fiber.Ctx) error {
	var in services.CreateCampaignInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	campaign, err := h.Campaigns.CreateCampaign(c.UserContext(), middleware.CallerFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (h *CampaignHandler) End(c *fiber.Ctx) error {
	campaign, err := h.Campaigns.EndCampaign(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaign)
}

func (h *CampaignHandler) Cancel(c *fiber.Ctx) error {
	campaign, err := h.Campaigns.CancelCampaign(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaign)
}
