package tour

import (
	"fmt"
	"strings"
)

// JobStatus is the audio-rendering lifecycle state of a tour.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Validate rejects unknown job statuses.
func (s JobStatus) Validate() error {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown job status %q", string(s))
	}
}

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Location identifies the street being toured.
type Location struct {
	StreetName       string  `json:"street_name"`
	Area             string  `json:"area,omitempty"`
	City             string  `json:"city,omitempty"`
	Country          string  `json:"country,omitempty"`
	CountryCode      string  `json:"country_code,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
}

// Place is a point of interest as reported by the places collaborator.
type Place struct {
	Name        string   `json:"name"`
	Types       []string `json:"types,omitempty"`
	Address     string   `json:"address,omitempty"`
	PlaceID     string   `json:"place_id,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	ReviewCount int      `json:"review_count,omitempty"`
}

// Category returns the display category for a place, derived from its
// first reported type.
func (p Place) Category() string {
	if len(p.Types) == 0 {
		return "landmark"
	}
	return strings.ReplaceAll(p.Types[0], "_", " ")
}

// GenerateRequest is the input to tour generation.
type GenerateRequest struct {
	Location       Location `json:"location"`
	Interests      []string `json:"interests"`
	SelectedPlaces []Place  `json:"selected_places,omitempty"`
	NearbyPlaces   []Place  `json:"nearby_places,omitempty"`
}

// Validate enforces the minimum shape a generation request must have.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Location.StreetName) == "" {
		return fmt.Errorf("location.street_name is required")
	}
	if len(r.Interests) == 0 {
		return fmt.Errorf("at least one interest is required")
	}
	for i, interest := range r.Interests {
		if strings.TrimSpace(interest) == "" {
			return fmt.Errorf("interests[%d] is empty", i)
		}
	}
	return nil
}

// ResearchResult is one research provider response: narrative text plus
// the citation URLs backing it, in provider order, duplicates allowed.
type ResearchResult struct {
	Content   string   `json:"content"`
	Citations []string `json:"citations,omitempty"`
}

// Narration is the synthesized walking-tour text for one street.
// Immutable once generated; audio state lives on the AudioJob record.
type Narration struct {
	TourID                   string   `json:"tour_id"`
	Title                    string   `json:"title"`
	Description              string   `json:"description,omitempty"`
	NarrationText            string   `json:"narration_text"`
	Sources                  []string `json:"sources,omitempty"`
	WordCount                int      `json:"word_count"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes"`
}

// AudioJob tracks one tour's audio-rendering lifecycle. Only the render
// pipeline advances its state; polling clients read it.
type AudioJob struct {
	TourID               string    `json:"tour_id"`
	Status               JobStatus `json:"status"`
	AudioURL             string    `json:"audio_url,omitempty"`
	AudioDurationSeconds int       `json:"audio_duration_seconds,omitempty"`
	AudioFileSizeBytes   int64     `json:"audio_file_size_bytes,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`
}
