// Package models defines the record and run types shared across the engine.
// Candidate and Job carry only the fields the engine itself reasons about;
// the platform's full business schema lives behind the store contracts.
package models

import (
	"strings"
	"time"
)

// Candidate is the engine-side view of a person record.
type Candidate struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`

	// ExternalIDs maps an external system name to the profile id the
	// candidate has there (e.g. "linkedin" -> member id).
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`

	// Optional profile fields filled in during duplicate merges
	Title       string   `json:"title,omitempty"`
	Company     string   `json:"company,omitempty"`
	Location    string   `json:"location,omitempty"`
	LinkedInURL string   `json:"linkedin_url,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// JobIDs lists the jobs this candidate is attached to
	JobIDs []string `json:"job_ids,omitempty"`

	// Duplicate marking: merged records are flagged, never deleted
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the candidate's display name.
func (c *Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Clone returns a deep copy of the candidate.
func (c *Candidate) Clone() *Candidate {
	clone := *c
	if c.ExternalIDs != nil {
		clone.ExternalIDs = make(map[string]string, len(c.ExternalIDs))
		for k, v := range c.ExternalIDs {
			clone.ExternalIDs[k] = v
		}
	}
	clone.Tags = append([]string(nil), c.Tags...)
	clone.JobIDs = append([]string(nil), c.JobIDs...)
	return &clone
}

// JobStatus enumerates the lifecycle states of a job record.
type JobStatus string

const (
	// JobStatusOpen means the job accepts candidates
	JobStatusOpen JobStatus = "open"
	// JobStatusClosed means the job no longer accepts candidates
	JobStatusClosed JobStatus = "closed"
	// JobStatusOnHold means the job is paused
	JobStatusOnHold JobStatus = "on_hold"
)

// Job is the engine-side view of a vacancy record.
type Job struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Title      string    `json:"title"`
	Department string    `json:"department,omitempty"`
	Location   string    `json:"location,omitempty"`
	Status     JobStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
