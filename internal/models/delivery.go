package models

import "time"

type DeliveryMethod string

const (
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
	DeliveryPush  DeliveryMethod = "push"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryEmail, DeliverySMS, DeliveryPush:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryPending DeliveryStatus = "pending"
)

// DeliveryLogEntry is one attempt to reach one recipient over one channel.
// Entries are written once and never updated.
type DeliveryLogEntry struct {
	ID          int64
	AlertID     string
	RecipientID string
	Channel     DeliveryMethod
	Status      DeliveryStatus
	ErrorDetail string
	Timestamp   time.Time
}

type DeliverySummary struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}
