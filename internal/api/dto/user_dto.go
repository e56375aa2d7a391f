package dto

import (
	"time"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// RegisterRequest payload for new accounts of any role.
type RegisterRequest struct {
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	Role             string   `json:"role"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone"`
	Address          string   `json:"address"`
	City             string   `json:"city"`
	Pincode          string   `json:"pincode"`
	SecurityQuestion string   `json:"securityQuestion"`
	SecurityAnswer   string   `json:"securityAnswer"`
	Specialization   string   `json:"specialization"`
	Availability     []string `json:"availability"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest drives the security question reset.
type ResetPasswordRequest struct {
	Email          string `json:"email"`
	SecurityAnswer string `json:"securityAnswer"`
	NewPassword    string `json:"newPassword"`
}

// ResetPasswordResponse carries the question or the completed step.
type ResetPasswordResponse struct {
	SecurityQuestion string `json:"securityQuestion,omitempty"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	Pending   bool        `json:"pending,omitempty"`
}

// ProfileRequest carries editable profile fields. Absent fields are left untouched.
type ProfileRequest struct {
	Name           *string  `json:"name"`
	Phone          *string  `json:"phone"`
	Address        *string  `json:"address"`
	City           *string  `json:"city"`
	Pincode        *string  `json:"pincode"`
	Specialization *string  `json:"specialization"`
	Availability   []string `json:"availability"`
}

// UserResponse is the public view of a customer.
type UserResponse struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Pincode   string    `json:"pincode"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminResponse is the public view of an administrator.
type AdminResponse struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// EngineerResponse is the public view of an engineer.
type EngineerResponse struct {
	Email          string                `json:"email"`
	Name           string                `json:"name"`
	Phone          string                `json:"phone"`
	Specialization domain.Specialization `json:"specialization"`
	Availability   []string              `json:"availability"`
	Address        string                `json:"address"`
	City           string                `json:"city"`
	Pincode        string                `json:"pincode"`
	Location       *domain.Location      `json:"location,omitempty"`
	CurrentTasks   int                   `json:"currentTasks"`
	AssignedTasks  []int64               `json:"assignedTasks"`
	Approved       bool                  `json:"isEngineer"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// RankedEngineerResponse is an eligible engineer with its distance to the ticket.
type RankedEngineerResponse struct {
	EngineerResponse
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ProfileResponse holds exactly one populated role view.
type ProfileResponse struct {
	Role     domain.Role       `json:"role"`
	User     *UserResponse     `json:"user,omitempty"`
	Engineer *EngineerResponse `json:"engineer,omitempty"`
	Admin    *AdminResponse    `json:"admin,omitempty"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Address:   u.Address,
		Pincode:   u.Pincode,
		CreatedAt: u.CreatedAt,
	}
}

// NewEngineerResponse maps a domain engineer.
func NewEngineerResponse(e *domain.Engineer) EngineerResponse {
	tasks := e.AssignedTasks
	if tasks == nil {
		tasks = []int64{}
	}
	availability := e.Availability
	if availability == nil {
		availability = []string{}
	}
	return EngineerResponse{
		Email:          e.Email,
		Name:           e.Name,
		Phone:          e.Phone,
		Specialization: e.Specialization,
		Availability:   availability,
		Address:        e.Address,
		City:           e.City,
		Pincode:        e.Pincode,
		Location:       e.Location,
		CurrentTasks:   e.CurrentTasks,
		AssignedTasks:  tasks,
		Approved:       e.Approved,
		CreatedAt:      e.CreatedAt,
	}
}

// NewEngineerList maps a slice of engineers, never returning nil.
func NewEngineerList(engineers []*domain.Engineer) []EngineerResponse {
	out := make([]EngineerResponse, 0, len(engineers))
	for _, e := range engineers {
		out = append(out, NewEngineerResponse(e))
	}
	return out
}

// NewProfileResponse maps whichever role record is set.
func NewProfileResponse(role domain.Role, user *domain.User, engineer *domain.Engineer, admin *domain.Admin) ProfileResponse {
	resp := ProfileResponse{Role: role}
	if user != nil {
		u := NewUserResponse(user)
		resp.User = &u
	}
	if engineer != nil {
		e := NewEngineerResponse(engineer)
		resp.Engineer = &e
	}
	if admin != nil {
		resp.Admin = &AdminResponse{Email: admin.Email, Name: admin.Name, Phone: admin.Phone, CreatedAt: admin.CreatedAt}
	}
	return resp
}
