package model

import "time"

// Project groups a user's documents. Deleting a project deletes its
// documents along with their covenants and alerts.
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectSummary is a project with counts of what it holds.
type ProjectSummary struct {
	Project
	DocumentCount int `json:"document_count"`
	CovenantCount int `json:"covenant_count"`
}
