package model

import "time"

// ResendRequest tracks how often the verification mail of a record was sent
// again. Count resets once WindowStart is older than a day
type ResendRequest struct {
	RecordID    string `gorm:"primaryKey;size:32"`
	LastResend  time.Time
	WindowStart time.Time
	Count       int
}
