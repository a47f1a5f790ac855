package models

import "time"

type Drill struct {
	ID               string
	CommunityID      string
	OrganizerID      string
	Title            string
	Description      string
	Location         string
	ScheduledAt      time.Time
	NotificationSent bool // set once the drill's alerts were submitted
	CreatedAt        time.Time
}
