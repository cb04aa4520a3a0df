package models

import "time"

// ShareSettings is the sharing metadata carried by folders and files.
type ShareSettings struct {
	IsPublic   bool       `json:"isPublic"`
	Token      *string    `json:"shareToken,omitempty"`
	ExpiresAt  *time.Time `json:"shareExpiresAt,omitempty"`
	SharedWith UserIDs    `json:"sharedWith"`
}

// Expired reports whether a share link with an expiry has run out at now.
func (s ShareSettings) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

func (s ShareSettings) clone() ShareSettings {
	out := s
	if s.Token != nil {
		t := *s.Token
		out.Token = &t
	}
	if s.ExpiresAt != nil {
		e := *s.ExpiresAt
		out.ExpiresAt = &e
	}
	out.SharedWith = append(UserIDs(nil), s.SharedWith...)
	return out
}
