package model

import "time"

// Track represents an audio-track record in the vault.
type Track struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ProducerName string    `json:"producerName"`
	BPM          float64   `json:"bpm"`
	MusicalKey   string    `json:"musicalKey"`
	Price        *float64  `json:"price,omitempty"` // nil means the track is free; 0 is an explicit price
	MoodTags     []string  `json:"moodTags"`
	AudioURL     string    `json:"audioUrl"` // stored-file path or externally hosted URL
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TrackUpdate carries a partial update for a Track. A nil pointer (or nil
// MoodTags slice) leaves the corresponding field untouched. ClearPrice resets
// the price to absent and takes precedence over Price.
type TrackUpdate struct {
	Title        *string
	ProducerName *string
	BPM          *float64
	MusicalKey   *string
	Price        *float64
	ClearPrice   bool
	MoodTags     []string
	AudioURL     *string
}

// Apply copies the fields carried by the update onto t. Timestamps are the
// store's responsibility and are not touched here.
func (u *TrackUpdate) Apply(t *Track) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.ProducerName != nil {
		t.ProducerName = *u.ProducerName
	}
	if u.BPM != nil {
		t.BPM = *u.BPM
	}
	if u.MusicalKey != nil {
		t.MusicalKey = *u.MusicalKey
	}
	if u.ClearPrice {
		t.Price = nil
	} else if u.Price != nil {
		price := *u.Price
		t.Price = &price
	}
	if u.MoodTags != nil {
		t.MoodTags = u.MoodTags
	}
	if u.AudioURL != nil {
		t.AudioURL = *u.AudioURL
	}
}
