// Package models defines the domain types for quill.
package models

import "time"

// Note is a user-authored title/content record.
// Timestamp is the last-modified time in milliseconds since the Unix epoch.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// ModifiedAt returns Timestamp as a time.Time.
func (n Note) ModifiedAt() time.Time {
	return time.UnixMilli(n.Timestamp)
}
