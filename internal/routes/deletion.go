package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courtchamps/courtchamps/internal/deletion"
)

// RegisterDeletionRoutes mounts the account deletion endpoints at the paths
// the web client posts to. The legacy /storeDeletionToken path only exists
// when secrets are returned directly.
func RegisterDeletionRoutes(r fiber.Router, h *deletion.Handler, channel deletion.Channel) {
	r.Post("/requestAccountDeletion", h.RequestDeletion)
	r.Post("/confirmAccountDeletion", h.ConfirmDeletion)
	if channel == deletion.ChannelDirect {
		r.Post("/storeDeletionToken", h.StoreDeletionToken)
	}
}
