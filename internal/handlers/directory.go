package handlers

import (
	"spamguard/server/internal/middleware"
	"spamguard/server/internal/services"

	"github.com/gofiber/fiber/v2"
)

// DirectoryHandler serves spam reports, search and contact lookup. All routes
// sit behind the auth middleware.
type DirectoryHandler struct {
	directory *services.DirectoryService
}

func NewDirectoryHandler(directory *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// MarkSpam reports a phone number as spam
func (h *DirectoryHandler) MarkSpam(c *fiber.Ctx) error {
	var req MarkSpamRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	contact, err := h.directory.MarkSpam(c.UserContext(), middleware.GetUser(c), req.Phone)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, contact, "Number marked as spam")
}

// Search finds users by name or phone via ?query=
func (h *DirectoryHandler) Search(c *fiber.Ctx) error {
	results, err := h.directory.Search(c.UserContext(), c.Query("query"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, results, "Search results retrieved successfully")
}

// GetContact returns a contact with its owner's email when the caller may see it
func (h *DirectoryHandler) GetContact(c *fiber.Ctx) error {
	details, err := h.directory.GetContactDetails(c.UserContext(), middleware.GetUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, details, "Contact details retrieved")
}
