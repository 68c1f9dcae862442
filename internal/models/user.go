package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// ParseRole maps a role string (any case) to a known Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleOwner, RoleAdmin, RoleStudent:
		return r, true
	}
	return "", false
}

// Action is an operation subject to role authorization.
type Action string

const (
	ActionCreateMeeting      Action = "create_meeting"
	ActionAllocate           Action = "allocate"
	ActionRemoveParticipants Action = "remove_participants"
	ActionReschedule         Action = "reschedule"
	ActionDeleteMeeting      Action = "delete_meeting"
	ActionListUsers          Action = "list_users"
	ActionManageUsers        Action = "manage_users"
)

var capabilities = map[Action]map[Role]bool{
	ActionCreateMeeting:      {RoleOwner: true, RoleAdmin: true},
	ActionAllocate:           {RoleOwner: true, RoleAdmin: true},
	ActionRemoveParticipants: {RoleOwner: true, RoleAdmin: true},
	ActionReschedule:         {RoleOwner: true, RoleAdmin: true},
	ActionDeleteMeeting:      {RoleOwner: true, RoleAdmin: true},
	ActionListUsers:          {RoleOwner: true, RoleAdmin: true},
	ActionManageUsers:        {RoleOwner: true, RoleAdmin: true},
}

// Can reports whether the role may perform the action.
func (r Role) Can(a Action) bool {
	return capabilities[a][r]
}

// Manages reports whether a user with role r may view or edit a user with role target.
// Owners manage admins and students; admins manage students only.
func (r Role) Manages(target Role) bool {
	switch r {
	case RoleOwner:
		return target == RoleAdmin || target == RoleStudent || target == RoleOwner
	case RoleAdmin:
		return target == RoleStudent
	}
	return false
}

// Visible returns the roles a user with role r sees when listing users.
func (r Role) Visible() []Role {
	switch r {
	case RoleOwner:
		return []Role{RoleAdmin, RoleStudent}
	case RoleAdmin:
		return []Role{RoleStudent}
	}
	return nil
}

// User represents a platform user.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        Role      `json:"role"`
	// OnboardingCredential is the generated first-login password, kept until it has been
	// delivered once in a meeting invitation.
	OnboardingCredential *string   `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        Role      `json:"role"`
	// Onboarded is false while the generated credential has not been delivered yet.
	Onboarded bool      `json:"onboarded"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		Onboarded:   u.OnboardingCredential == nil,
		CreatedAt:   u.CreatedAt,
	}
}

// HasPendingCredential reports whether the onboarding credential is still undelivered.
func (u *User) HasPendingCredential() bool {
	return u.OnboardingCredential != nil && *u.OnboardingCredential != ""
}
