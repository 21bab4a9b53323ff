package models

import "time"

// Submission is the metadata of an uploaded tour bundle. It is also one
// line of the submissions log.
type Submission struct {
	FileName    string     `gorm:"primaryKey;size:255" json:"fileName"`
	StudentName string     `json:"studentName"`
	ProjectName string     `json:"projectName"`
	Size        int64      `json:"size,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	HostedURL   string     `json:"hostedUrl,omitempty"`
	HostedPath  string     `json:"hostedPath,omitempty"`
	HostedAt    *time.Time `json:"hostedAt,omitempty"`
	IsHosted    bool       `json:"isHosted"`
}
