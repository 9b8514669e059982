// internal/models/notification.go
package models

type NotificationTemplate struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"htmlBody,omitempty"`
	Version  string `json:"version"`
}

// Contact is the subset of a user row needed to deliver a notification.
type Contact struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}
