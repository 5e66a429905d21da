// Package model defines database models
package model

import "time"

// VerificationRecord is one submitted site analysis waiting for, or having
// completed, email confirmation. VerificationToken is the only credential
// needed to read the report back.
type VerificationRecord struct {
	ID                string     `gorm:"primaryKey;size:32" json:"id"`
	URL               string     `gorm:"not null" json:"url"`
	Report            string     `gorm:"type:text;not null" json:"report"`
	Screenshot        string     `json:"screenshot"`
	Email             string     `gorm:"index;not null" json:"-"`
	FirstName         string     `json:"-"`
	VerificationToken string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	TokenExpiresAt    time.Time  `gorm:"not null" json:"token_expires_at"`
	EmailVerified     bool       `gorm:"default:false;not null" json:"email_verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitzero"`
	HubspotContactID  *string    `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Expired reports whether the token can no longer be redeemed at t. The
// expiry instant itself is still redeemable
func (r *VerificationRecord) Expired(t time.Time) bool {
	return t.After(r.TokenExpiresAt)
}
