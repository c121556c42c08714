// Package model defines the data structures used throughout the application.
//
// Every struct carries both json and firestore tags. The JSON names are the
// API contract the browser client depends on; the firestore names are the
// document field names in the users, stamps and submissions collections. They
// are kept identical so a document read straight from the console looks like
// the API response.
package model

import "time"

// Registration sources.
const (
	SourceNickname = "nickname"
	SourceFormSG   = "formsg"
)

// User is a registrant. The nickname flow fills Nickname; the webhook flow
// fills Email/Name and the provenance fields.
type User struct {
	ID             string            `json:"id"                       firestore:"id"`
	Nickname       string            `json:"nickname,omitempty"       firestore:"nickname,omitempty"`
	Email          string            `json:"email,omitempty"          firestore:"email,omitempty"`
	Name           string            `json:"name,omitempty"           firestore:"name,omitempty"`
	Source         string            `json:"source"                   firestore:"source"`
	FormID         string            `json:"formId,omitempty"         firestore:"formId,omitempty"`
	SubmissionID   string            `json:"submissionId,omitempty"   firestore:"submissionId,omitempty"`
	FormData       map[string]any    `json:"formData,omitempty"       firestore:"formData,omitempty"` // raw payload, kept for audit
	AdditionalData map[string]string `json:"additionalData,omitempty" firestore:"additionalData,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"                firestore:"createdAt"`
	LastActive     time.Time         `json:"lastActive"               firestore:"lastActive"`
}

// DisplayName is what the stamp page greets the registrant with.
// Webhook registrants have no nickname, so fall back to name, then email.
func (u *User) DisplayName() string {
	switch {
	case u.Nickname != "":
		return u.Nickname
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

// UserInfo is the small projection returned alongside a stamp card.
type UserInfo struct {
	Nickname   string    `json:"nickname"`
	LastActive time.Time `json:"lastActive"`
}

// Info projects u for the stamp page, greeting it by DisplayName.
func (u *User) Info() UserInfo {
	return UserInfo{Nickname: u.DisplayName(), LastActive: u.LastActive}
}

// Submission records a FormSG submission id relayed by the middleman service.
type Submission struct {
	SubmissionID string    `json:"submissionId"    firestore:"submissionId"`
	UserID       string    `json:"userId,omitempty" firestore:"userId,omitempty"`
	Email        string    `json:"email,omitempty"  firestore:"email,omitempty"`
	Source       string    `json:"source"          firestore:"source"`
	ReceivedAt   time.Time `json:"receivedAt"      firestore:"receivedAt"`
}

// Stats is the admin overview.
type Stats struct {
	TotalUsers      int    `json:"totalUsers"`
	TotalStampCards int    `json:"totalStampCards"`
	RecentUsers     []User `json:"recentUsers"`
}

// StoreCheck is the result of a storage round-trip probe.
type StoreCheck struct {
	Backend     string         `json:"backend"`
	Project     string         `json:"project,omitempty"`
	ProbeID     string         `json:"probeId"`
	Wrote       bool           `json:"wrote"`
	Read        bool           `json:"read"`
	Deleted     bool           `json:"deleted"`
	Collections map[string]int `json:"collections"`
	CheckedAt   time.Time      `json:"checkedAt"`
}
