package models

// User is a YouTrack user profile, as returned by /users/me.
type User struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
