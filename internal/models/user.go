package models

// User is a presence entry: a stable identity that may own several
// simultaneous connections. Online is true by construction for registry
// snapshots but kept for symmetry with records loaded from elsewhere.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}
