package deletion

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the deletion workflow over HTTP. Every failure is a 400
// with a human-readable message.
type Handler struct {
	service *Service
}

// NewHandler constructs a deletion HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestDeletionRequest struct {
	Email string `json:"email"`
}

type requestDeletionResponse struct {
	Message     string `json:"message,omitempty"`
	SecureToken string `json:"secureToken,omitempty"`
}

type confirmDeletionRequest struct {
	Email       string `json:"email"`
	SecureToken string `json:"secureToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RequestDeletion issues a token over the configured confirmation channel.
func (h *Handler) RequestDeletion(c *fiber.Ctx) error {
	var req requestDeletionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, MsgInvalidBody)
	}
	res, err := h.service.Request(c.UserContext(), req.Email)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, clientMessage(err, MsgStoreFailed))
	}
	return c.Status(http.StatusOK).JSON(requestDeletionResponse{Message: res.Message, SecureToken: res.SecureToken})
}

// StoreDeletionToken is the path older web clients post to. It behaves
// exactly like RequestDeletion, so the secret is only returned in the body
// when the configured channel is direct.
func (h *Handler) StoreDeletionToken(c *fiber.Ctx) error {
	return h.RequestDeletion(c)
}

// ConfirmDeletion consumes the token and deletes the account.
func (h *Handler) ConfirmDeletion(c *fiber.Ctx) error {
	var req confirmDeletionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, MsgInvalidBody)
	}
	if err := h.service.Confirm(c.UserContext(), req.Email, req.SecureToken); err != nil {
		return fiber.NewError(http.StatusBadRequest, clientMessage(err, MsgDeleteFailed))
	}
	return c.Status(http.StatusOK).JSON(messageResponse{Message: MsgDeleted})
}

func clientMessage(err error, fallback string) string {
	var werr *Error
	if errors.As(err, &werr) && werr.Message != "" {
		return werr.Message
	}
	return fallback
}
