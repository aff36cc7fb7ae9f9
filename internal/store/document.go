package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

// DocumentVersion tags the persisted document layout.
const DocumentVersion = "2.0"

type linkRecord struct {
	OriginalURL   string    `json:"originalUrl"`
	ShortCode     string    `json:"shortCode"`
	UserID        string    `json:"userId"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	MaxClicks     int       `json:"maxClicks"`
	CurrentClicks int       `json:"currentClicks"`
	Active        bool      `json:"active"`
}

type metadata struct {
	TotalURLs int       `json:"totalUrls"`
	SavedAt   time.Time `json:"savedAt"`
	Version   string    `json:"version"`
}

type document struct {
	URLs     []linkRecord `json:"urls"`
	Metadata metadata     `json:"metadata"`
}

// rawDocument defers record decoding so one bad record does not spoil the rest.
type rawDocument struct {
	URLs     []json.RawMessage `json:"urls"`
	Metadata metadata          `json:"metadata"`
}

func toRecord(link *shortener.Link) linkRecord {
	s := link.State()

	return linkRecord{
		OriginalURL:   string(s.URL),
		ShortCode:     string(s.Code),
		UserID:        s.Owner.String(),
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		MaxClicks:     s.MaxClicks,
		CurrentClicks: s.Clicks,
		Active:        s.Active,
	}
}

func fromRecord(raw json.RawMessage) (*shortener.Link, error) {
	var rec linkRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	url, err := shortener.NewURL(rec.OriginalURL)
	if err != nil {
		return nil, err
	}

	code, err := shortener.NewCode(rec.ShortCode)
	if err != nil {
		return nil, err
	}

	owner, err := shortener.ParseUserID(rec.UserID)
	if err != nil {
		return nil, err
	}

	return shortener.RestoreLink(shortener.LinkState{
		URL:       url,
		Code:      code,
		Owner:     owner,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		MaxClicks: rec.MaxClicks,
		Clicks:    rec.CurrentClicks,
		Active:    rec.Active,
	})
}
