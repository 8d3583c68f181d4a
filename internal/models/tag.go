package models

// Tag is an issue tag as YouTrack returns it.
type Tag struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Owner *TagOwner `json:"owner,omitempty"`
}

// TagOwner is the user a tag belongs to.
type TagOwner struct {
	ID    string `json:"id,omitempty"`
	Login string `json:"login,omitempty"`
	Name  string `json:"name,omitempty"`
}
