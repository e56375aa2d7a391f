package domain

import "time"

// User is a customer who raises tickets.
type User struct {
	Email              string
	Name               string
	Phone              string
	Address            string
	Pincode            string
	SecurityQuestion   string
	SecurityAnswerHash string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Admin oversees reassignment and engineer approval.
type Admin struct {
	Email              string
	Name               string
	Phone              string
	SecurityQuestion   string
	SecurityAnswerHash string
	CreatedAt          time.Time
}

// ProfilePatch carries the editable profile fields. Nil fields are left untouched.
type ProfilePatch struct {
	Name           *string
	Phone          *string
	Address        *string
	Pincode        *string
	City           *string
	Specialization *Specialization
	Availability   []string
}
