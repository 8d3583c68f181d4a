package models

// Project is a YouTrack project summary.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Description string `json:"description,omitempty"`
	Archived    bool   `json:"archived,omitempty"`
}
