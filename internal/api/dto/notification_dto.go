package dto

import (
	"time"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// NotificationRequest creates an in-app notification.
type NotificationRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SendEmailRequest asks the relay to deliver an email.
type SendEmailRequest struct {
	UserEmail string `json:"userEmail"`
	Subject   string `json:"subject"`
	EmailBody string `json:"emailBody"`
}

// NotificationResponse is the public view of an in-app notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// HazardRequest carries hazard fields. Absent fields are left untouched on update.
type HazardRequest struct {
	HazardType  *string `json:"hazardType"`
	Description *string `json:"description"`
	RiskLevel   *string `json:"riskLevel"`
	Address     *string `json:"address"`
	Pincode     *string `json:"pincode"`
}

// HazardResponse is the public view of a hazard report.
type HazardResponse struct {
	ID          string           `json:"id"`
	HazardType  string           `json:"hazardType"`
	Description string           `json:"description"`
	RiskLevel   domain.RiskLevel `json:"riskLevel"`
	Address     string           `json:"address"`
	Pincode     string           `json:"pincode"`
	Location    *domain.Location `json:"location,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewNotificationResponse maps a domain notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{ID: n.ID, Email: n.Email, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt}
}

// NewHazardResponse maps a domain hazard.
func NewHazardResponse(h *domain.Hazard) HazardResponse {
	return HazardResponse{
		ID:          h.ID,
		HazardType:  h.HazardType,
		Description: h.Description,
		RiskLevel:   h.RiskLevel,
		Address:     h.Address,
		Pincode:     h.Pincode,
		Location:    h.Location,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}
