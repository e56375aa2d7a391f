package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/dto"
	"github.com/fieldops/dispatch-service/internal/service"
)

// UsersHandler exposes account, profile and ticket raising endpoints.
type UsersHandler struct {
	auth       *service.AuthService
	assignment *service.AssignmentService
	profiles   *service.ProfileService
	cookieName string
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, assignment *service.AssignmentService, profiles *service.ProfileService, cookieName string) *UsersHandler {
	return &UsersHandler{auth: authService, assignment: assignment, profiles: profiles, cookieName: cookieName}
}

// NewUser handles POST /api/users/newUser.
func (h *UsersHandler) NewUser(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		Role:             req.Role,
		Name:             req.Name,
		Phone:            req.Phone,
		Address:          req.Address,
		City:             req.City,
		Pincode:          req.Pincode,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
		Specialization:   req.Specialization,
		Availability:     req.Availability,
	})
	if err != nil {
		return err
	}

	message := "Registration successful"
	if result.Pending {
		message = service.MsgAwaitingApproval
	} else {
		h.setAuthCookie(c, result.Token, result.ExpiresAt)
	}
	return created(c, message, authResponse(result))
}

// CheckUser handles POST /api/users/checkUser.
func (h *UsersHandler) CheckUser(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setAuthCookie(c, result.Token, result.ExpiresAt)
	return ok(c, authResponse(result))
}

// Reset handles POST /api/users/reset.
func (h *UsersHandler) Reset(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.ResetPassword(c.UserContext(), service.ResetInput{
		Email:          req.Email,
		SecurityAnswer: req.SecurityAnswer,
		NewPassword:    req.NewPassword,
	})
	if err != nil {
		return err
	}
	if result.SecurityQuestion != "" {
		return respond(c, fiber.StatusOK, result.Message, dto.ResetPasswordResponse{SecurityQuestion: result.SecurityQuestion})
	}
	return respond(c, fiber.StatusOK, result.Message, nil)
}

// RaiseTicket handles POST /api/users/raiseTicket.
func (h *UsersHandler) RaiseTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RaiseTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	raised, err := h.assignment.RaiseTicket(c.UserContext(), principal, service.TicketInput{
		ServiceType: req.ServiceType,
		Address:     req.Address,
		Pincode:     req.Pincode,
		Description: req.Description,
	})
	if err != nil {
		return err
	}

	resp := dto.RaiseTicketResponse{Ticket: dto.NewTicketResponse(raised.Ticket)}
	message := "Ticket raised"
	if a := raised.Assignment; a != nil {
		resp.Assignment = &dto.AssignmentResponse{
			Assigned:      a.Assigned,
			EngineerEmail: a.EngineerEmail,
			DistanceKm:    a.DistanceKm,
			Message:       a.Message,
		}
		if a.Message != "" {
			message = a.Message
		}
	}
	return created(c, message, resp)
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	profile, err := h.profiles.GetProfile(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return ok(c, dto.NewProfileResponse(principal.Role(), profile.User, profile.Engineer, profile.Admin))
}

// UpdateProfile handles PATCH /api/users/profile.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	profile, err := h.profiles.UpdateProfile(c.UserContext(), principal, service.ProfileInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Address:        req.Address,
		Pincode:        req.Pincode,
		City:           req.City,
		Specialization: req.Specialization,
		Availability:   req.Availability,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Profile updated", dto.NewProfileResponse(principal.Role(), profile.User, profile.Engineer, profile.Admin))
}

func (h *UsersHandler) setAuthCookie(c *fiber.Ctx, token string, expires time.Time) {
	if h.cookieName == "" || token == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	resp := dto.AuthResponse{Email: result.Email, Role: result.Role, Token: result.Token, Pending: result.Pending}
	if !result.ExpiresAt.IsZero() {
		expires := result.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}
