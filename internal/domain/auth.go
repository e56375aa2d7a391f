package domain

// Role differentiates the three kinds of account.
type Role string

const (
	RoleUser     Role = "user"
	RoleEngineer Role = "engineer"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(raw); r {
	case RoleUser, RoleEngineer, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Credential is the login record shared by every role.
type Credential struct {
	Email        string
	PasswordHash string
	Role         Role
}

// TicketScope restricts a ticket listing to the tickets a principal may see.
type TicketScope struct {
	UserEmail     *string
	EngineerEmail *string
}

// Principal is the authenticated caller. The set of implementations is closed.
type Principal interface {
	Email() string
	Role() Role
	TicketScope() TicketScope
	principal()
}

// UserPrincipal is a customer account.
type UserPrincipal struct{ EmailAddr string }

// EngineerPrincipal is an approved engineer.
type EngineerPrincipal struct{ EmailAddr string }

// AdminPrincipal may see and modify every ticket.
type AdminPrincipal struct{ EmailAddr string }

func (p UserPrincipal) Email() string     { return p.EmailAddr }
func (p EngineerPrincipal) Email() string { return p.EmailAddr }
func (p AdminPrincipal) Email() string    { return p.EmailAddr }

func (UserPrincipal) Role() Role     { return RoleUser }
func (EngineerPrincipal) Role() Role { return RoleEngineer }
func (AdminPrincipal) Role() Role    { return RoleAdmin }

func (p UserPrincipal) TicketScope() TicketScope {
	email := p.EmailAddr
	return TicketScope{UserEmail: &email}
}

func (p EngineerPrincipal) TicketScope() TicketScope {
	email := p.EmailAddr
	return TicketScope{EngineerEmail: &email}
}

func (AdminPrincipal) TicketScope() TicketScope { return TicketScope{} }

func (UserPrincipal) principal()     {}
func (EngineerPrincipal) principal() {}
func (AdminPrincipal) principal()    {}

// NewPrincipal builds the variant for a role.
func NewPrincipal(role Role, email string) (Principal, bool) {
	switch role {
	case RoleUser:
		return UserPrincipal{EmailAddr: email}, true
	case RoleEngineer:
		return EngineerPrincipal{EmailAddr: email}, true
	case RoleAdmin:
		return AdminPrincipal{EmailAddr: email}, true
	default:
		return nil, false
	}
}
