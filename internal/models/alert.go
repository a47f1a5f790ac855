package models

import (
	"strings"
	"time"
)

type AlertType string

const (
	AlertTypeWeather    AlertType = "weather"
	AlertTypeFlood      AlertType = "flood"
	AlertTypeFire       AlertType = "fire"
	AlertTypeEarthquake AlertType = "earthquake"
	AlertTypeGeneral    AlertType = "general"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeWeather, AlertTypeFlood, AlertTypeFire, AlertTypeEarthquake, AlertTypeGeneral:
		return true
	}
	return false
}

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityLow, AlertSeverityMedium, AlertSeverityHigh, AlertSeverityCritical:
		return true
	}
	return false
}

type TargetScope string

const (
	TargetScopeAll           TargetScope = "all"
	TargetScopeCommunity     TargetScope = "community"
	TargetScopeRegion        TargetScope = "region"
	TargetScopeSpecificGroup TargetScope = "specific_group"
)

func (s TargetScope) Valid() bool {
	switch s {
	case TargetScopeAll, TargetScopeCommunity, TargetScopeRegion, TargetScopeSpecificGroup:
		return true
	}
	return false
}

// RequiresCommunity reports whether the scope is resolved from a single
// community (or region/group) identifier.
func (s TargetScope) RequiresCommunity() bool {
	return s != TargetScopeAll
}

// AllowedTTLHours are the validity windows an operator can pick from.
var AllowedTTLHours = []int{1, 6, 12, 24, 48, 72, 168}

func TTLHours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}

func IsAllowedTTLHours(h int) bool {
	for _, allowed := range AllowedTTLHours {
		if h == allowed {
			return true
		}
	}
	return false
}

type Alert struct {
	ID                string
	SenderID          string
	Type              AlertType
	Severity          AlertSeverity
	Title             string
	Message           string
	TargetScope       TargetScope
	TargetCommunityID *string // set when TargetScope is not "all"
	DeliveryMethods   []DeliveryMethod
	RecipientsCount   int // snapshot taken at dispatch time
	SentAt            time.Time
	ExpiresAt         time.Time
}

// Active reports whether the alert is still inside its validity window.
func (a *Alert) Active(now time.Time) bool {
	return a.ExpiresAt.After(now)
}

// AlertIntent is what a producer asks the dispatch engine to send.
type AlertIntent struct {
	Type        AlertType
	Severity    AlertSeverity
	Title       string
	Message     string
	Scope       TargetScope
	CommunityID string
	Methods     []DeliveryMethod
	TTL         time.Duration
}

// UniqueMethods returns the intent's methods with duplicates removed,
// keeping first-seen order.
func (i AlertIntent) UniqueMethods() []DeliveryMethod {
	seen := make(map[DeliveryMethod]struct{}, len(i.Methods))
	out := make([]DeliveryMethod, 0, len(i.Methods))
	for _, m := range i.Methods {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

type AlertSummary struct {
	Alert
	Active   bool
	Delivery DeliverySummary
}

func ParseDeliveryMethods(csv string) []DeliveryMethod {
	var methods []DeliveryMethod
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		methods = append(methods, DeliveryMethod(part))
	}
	return methods
}

func JoinDeliveryMethods(methods []DeliveryMethod) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}
