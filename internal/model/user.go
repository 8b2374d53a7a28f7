package model

import "time"

// User represents a user document. Profile CRUD lives outside this system;
// users are referenced for presence and display only.
type User struct {
	ID       string    `json:"id" bson:"_id,omitempty"`
	Name     string    `json:"name" bson:"name"`
	Username string    `json:"username" bson:"username"`
	Avatar   string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
	LastSeen time.Time `json:"lastSeen" bson:"last_seen"`
}
