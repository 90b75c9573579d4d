package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestTrackJSONPrice(t *testing.T) {
	track := Track{
		ID:           "507f1f77bcf86cd799439011",
		Title:        "Night Drive",
		ProducerName: "kid",
		BPM:          128,
		MusicalKey:   "Fm",
		MoodTags:     []string{"chill"},
		AudioURL:     "https://x/y.mp3",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	encoded, err := json.Marshal(track)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(encoded), `"price"`) {
		t.Fatalf("absent price must not be serialized: %s", encoded)
	}
	if !strings.Contains(string(encoded), `"createdAt":"2026-01-02T03:04:05Z"`) {
		t.Fatalf("createdAt must serialize as ISO-8601: %s", encoded)
	}

	zero := 0.0
	track.Price = &zero
	encoded, err = json.Marshal(track)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(encoded), `"price":0`) {
		t.Fatalf("explicit zero price must be serialized: %s", encoded)
	}
}

func TestTrackUpdateApply(t *testing.T) {
	price := 29.99
	track := Track{
		Title:        "Night Drive",
		ProducerName: "kid",
		BPM:          128,
		MusicalKey:   "Fm",
		Price:        &price,
		MoodTags:     []string{"chill"},
		AudioURL:     "https://x/y.mp3",
	}

	t.Run("empty update touches nothing", func(t *testing.T) {
		got := track
		(&TrackUpdate{}).Apply(&got)
		if !reflect.DeepEqual(got, track) {
			t.Fatalf("empty update changed the track: %+v", got)
		}
	})

	t.Run("only carried fields change", func(t *testing.T) {
		got := track
		title := "Day Drive"
		bpm := 90.0
		(&TrackUpdate{Title: &title, BPM: &bpm}).Apply(&got)
		if got.Title != "Day Drive" || got.BPM != 90 {
			t.Fatalf("update not applied: %+v", got)
		}
		if got.ProducerName != track.ProducerName || got.MusicalKey != track.MusicalKey {
			t.Fatalf("untouched fields changed: %+v", got)
		}
	})

	t.Run("clear price wins over price", func(t *testing.T) {
		got := track
		p := 5.0
		(&TrackUpdate{Price: &p, ClearPrice: true}).Apply(&got)
		if got.Price != nil {
			t.Fatalf("price should be cleared, got %v", *got.Price)
		}
	})

	t.Run("mood tags replaced only when carried", func(t *testing.T) {
		got := track
		(&TrackUpdate{MoodTags: []string{}}).Apply(&got)
		if len(got.MoodTags) != 0 {
			t.Fatalf("carried empty tag list must replace, got %v", got.MoodTags)
		}
	})
}
