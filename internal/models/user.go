package models

// User is identified by a unique display name. The numeric id is assigned
// by the store on first reference.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
