package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/dto"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/notify"
	"github.com/fieldops/dispatch-service/internal/service"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// NotificationsHandler exposes the in-app inbox and the email relay.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// Create POST /api/notifications.
func (h *NotificationsHandler) Create(c *fiber.Ctx) error {
	var req dto.NotificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	n, err := h.notifications.Create(c.UserContext(), req.Email, req.Message)
	if err != nil {
		return err
	}
	return created(c, "Notification created", dto.NewNotificationResponse(n))
}

// ListByEmail GET /api/notifications/:email. Non-admins may only read their own inbox.
func (h *NotificationsHandler) ListByEmail(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	email := emailParam(c, "email")
	if principal.Role() != domain.RoleAdmin && email != principal.Email() {
		return apperrors.NewForbidden("cannot read another account's notifications")
	}

	list, err := h.notifications.ListByEmail(c.UserContext(), email)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewNotificationResponse(&list[i]))
	}
	return ok(c, items)
}

// MarkRead PATCH /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Notification marked as read", nil)
}

// Dismiss DELETE /api/notifications/:id.
func (h *NotificationsHandler) Dismiss(c *fiber.Ctx) error {
	if err := h.notifications.Dismiss(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Notification dismissed", nil)
}

// Send POST /api/notifications/send.
func (h *NotificationsHandler) Send(c *fiber.Ctx) error {
	var req dto.SendEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg := notify.Message{To: req.UserEmail, Subject: req.Subject, Body: req.EmailBody}
	if err := h.notifications.Send(c.UserContext(), msg); err != nil {
		return err
	}
	return respond(c, fiber.StatusAccepted, "Email queued", nil)
}
