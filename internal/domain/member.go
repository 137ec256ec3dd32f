package domain

import "time"

// Member is the domain representation of an authenticated employee.
type Member struct {
	ID    MemberID
	Email string
	Name  string

	// IsAdmin is persisted state owned by the member repository.
	// Sign-in never changes it.
	IsAdmin bool

	// IsActive is false once an admin removed the member. The row is kept so
	// expenses and favorite routes keep a valid owner.
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberRef is the attribution shown next to expenses in admin listings.
type MemberRef struct {
	ID    MemberID
	Name  string
	Email string
}
