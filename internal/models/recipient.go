package models

// Member is a row of a community roster as the membership directory returns it.
type Member struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	CommunityID string
}

type Community struct {
	ID          string
	Name        string
	LeaderID    string
	MemberCount int
}

// Recipient is a member resolved for a single dispatch. Channels is computed
// once from the member's contact data and must not change afterwards.
type Recipient struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	CommunityID string
	Channels    []DeliveryMethod
}

func NewRecipient(m Member) Recipient {
	r := Recipient{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		CommunityID: m.CommunityID,
	}
	if r.Email != "" {
		r.Channels = append(r.Channels, DeliveryEmail)
	}
	if r.Phone != "" {
		r.Channels = append(r.Channels, DeliverySMS)
	}
	// Push is addressed by member id.
	r.Channels = append(r.Channels, DeliveryPush)
	return r
}

func (r Recipient) Eligible(m DeliveryMethod) bool {
	for _, c := range r.Channels {
		if c == m {
			return true
		}
	}
	return false
}
