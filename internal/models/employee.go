package models

import "time"

// Employee is a person whose calendar can be queried.
// EncryptedToken holds the vault ciphertext of the Google refresh token; it is never exposed.
type Employee struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	EncryptedToken string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Subject identifies whose calendar a snapshot describes.
type Subject struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
