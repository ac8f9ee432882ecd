package users

import "time"

// Profile holds the body measurements used for BMI and calorie
// estimation. Both fields are optional.
type Profile struct {
	Height *float64 `json:"height,omitempty"` // centimeters
	Weight *float64 `json:"weight,omitempty"` // kilograms
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"createdAt"`
}
