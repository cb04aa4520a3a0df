package models

import "time"

// User is an account. Token fields hold SHA-256 digests of the one-time
// tokens mailed to the user.
type User struct {
	ID                        string     `json:"id"`
	FirstName                 string     `json:"firstName"`
	LastName                  string     `json:"lastName"`
	Email                     string     `json:"email"`
	PasswordHash              string     `json:"-"`
	IsActive                  bool       `json:"isActive"`
	VerificationToken         *string    `json:"-"`
	VerificationTokenExpires  *time.Time `json:"-"`
	ResetPasswordToken        *string    `json:"-"`
	ResetPasswordTokenExpires *time.Time `json:"-"`
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	out := *u
	out.VerificationToken = clonePtr(u.VerificationToken)
	out.VerificationTokenExpires = clonePtr(u.VerificationTokenExpires)
	out.ResetPasswordToken = clonePtr(u.ResetPasswordToken)
	out.ResetPasswordTokenExpires = clonePtr(u.ResetPasswordTokenExpires)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
