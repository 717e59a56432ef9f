// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// ID is an xid generated by the store on insert. Score is a derived value:
// it always equals the sum of points over the user's earned-points records
// and is only ever increased by the scoring flow. PasswordHash is never
// serialized.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Score        int       `json:"score"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LeaderboardEntry is the public projection of a user on the leaderboard.
type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}
