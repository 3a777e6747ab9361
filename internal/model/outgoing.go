package model

import "time"

// OutgoingEmail is one entry in the local log of messages the assistant
// has sent on the owner's behalf. ReplyToID names the watched message a
// reply was written for and is empty for a fresh compose.
type OutgoingEmail struct {
	ID        string    `json:"id" db:"id"`
	Recipient string    `json:"recipient" db:"recipient"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	ReplyToID string    `json:"reply_to_id" db:"reply_to_id"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
}
