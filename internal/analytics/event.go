package analytics

import "time"

const (
	TopicLinkCreated   = "link.created"
	TopicLinkAccessed  = "link.accessed"
	TopicLinkExhausted = "link.exhausted"
	TopicLinkDeleted   = "link.deleted"
)

// LinkCreatedEvent is emitted after a link is stored.
type LinkCreatedEvent struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	OwnerID     string    `json:"ownerId"`
	MaxClicks   int       `json:"maxClicks"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LinkAccessedEvent is emitted for every successful redirect.
type LinkAccessedEvent struct {
	Code       string    `json:"code"`
	OwnerID    string    `json:"ownerId"`
	Clicks     int       `json:"clicks"`
	MaxClicks  int       `json:"maxClicks"`
	AccessedAt time.Time `json:"accessedAt"`
}

// LinkExhaustedEvent is emitted when a redirect uses up the last click.
type LinkExhaustedEvent struct {
	Code        string    `json:"code"`
	OwnerID     string    `json:"ownerId"`
	MaxClicks   int       `json:"maxClicks"`
	ExhaustedAt time.Time `json:"exhaustedAt"`
}

// LinkDeletedEvent is emitted when an owner deletes a link or housekeeping evicts it.
type LinkDeletedEvent struct {
	Code      string    `json:"code"`
	OwnerID   string    `json:"ownerId"`
	Reason    string    `json:"reason"`
	DeletedAt time.Time `json:"deletedAt"`
}

const (
	DeleteReasonOwner   = "owner"
	DeleteReasonExpired = "expired"
)
