package model

import (
	"net/url"
	"strings"
	"time"
)

// Draft holds the caller-supplied fields of a new event. Id, creation time,
// participant counter and registration flag are assigned on create.
type Draft struct {
	Title            string
	Description      string
	Poster           *string
	Date             time.Time
	Time             string
	Location         string
	OrganizerID      string
	OrganizerName    string
	OrganizerType    OrganizerType
	Category         Category
	MaxParticipants  int
	RegistrationLink *string
	Certificate      *string
}

// Validate checks every field and returns a *ValidationError naming all
// failures, or nil.
func (d Draft) Validate() error {
	verr := &ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"title", d.Title},
		{"description", d.Description},
		{"time", d.Time},
		{"location", d.Location},
		{"organizerId", d.OrganizerID},
		{"organizerName", d.OrganizerName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.add(r.field, "required")
		}
	}

	if d.Date.IsZero() {
		verr.add("date", "required")
	}
	if d.MaxParticipants <= 0 {
		verr.add("maxParticipants", "must be positive")
	}
	if _, err := ParseCategory(string(d.Category)); err != nil {
		verr.add("category", err.Error())
	}
	if _, err := ParseOrganizerType(string(d.OrganizerType)); err != nil {
		verr.add("organizerType", err.Error())
	}
	if d.RegistrationLink != nil && !isHTTPURL(*d.RegistrationLink) {
		verr.add("registrationLink", "must be an absolute http(s) URL")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
