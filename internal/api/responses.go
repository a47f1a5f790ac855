package api

import (
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

type AlertResponse struct {
	ID                string                  `json:"id"`
	SenderID          string                  `json:"sender_id"`
	Type              models.AlertType        `json:"type"`
	Severity          models.AlertSeverity    `json:"severity"`
	Title             string                  `json:"title"`
	Message           string                  `json:"message"`
	TargetScope       models.TargetScope      `json:"target_scope"`
	TargetCommunityID *string                 `json:"target_community_id,omitempty"`
	DeliveryMethods   []models.DeliveryMethod `json:"delivery_methods"`
	RecipientsCount   int                     `json:"recipients_count"`
	SentAt            time.Time               `json:"sent_at"`
	ExpiresAt         time.Time               `json:"expires_at"`
}

type AlertSummaryResponse struct {
	AlertResponse
	Active   bool                   `json:"active"`
	Delivery models.DeliverySummary `json:"delivery"`
}

type DeliveryResponse struct {
	ID          int64                 `json:"id"`
	RecipientID string                `json:"recipient_id"`
	Channel     models.DeliveryMethod `json:"channel"`
	Status      models.DeliveryStatus `json:"status"`
	ErrorDetail string                `json:"error_detail,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}

func toAlertResponse(a *models.Alert) AlertResponse {
	return AlertResponse{
		ID:                a.ID,
		SenderID:          a.SenderID,
		Type:              a.Type,
		Severity:          a.Severity,
		Title:             a.Title,
		Message:           a.Message,
		TargetScope:       a.TargetScope,
		TargetCommunityID: a.TargetCommunityID,
		DeliveryMethods:   a.DeliveryMethods,
		RecipientsCount:   a.RecipientsCount,
		SentAt:            a.SentAt,
		ExpiresAt:         a.ExpiresAt,
	}
}

func toSummaryResponses(summaries []models.AlertSummary) []AlertSummaryResponse {
	out := make([]AlertSummaryResponse, 0, len(summaries))
	for i := range summaries {
		out = append(out, AlertSummaryResponse{
			AlertResponse: toAlertResponse(&summaries[i].Alert),
			Active:        summaries[i].Active,
			Delivery:      summaries[i].Delivery,
		})
	}
	return out
}

func toDeliveryResponses(entries []models.DeliveryLogEntry) []DeliveryResponse {
	out := make([]DeliveryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, DeliveryResponse{
			ID:          e.ID,
			RecipientID: e.RecipientID,
			Channel:     e.Channel,
			Status:      e.Status,
			ErrorDetail: e.ErrorDetail,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}
