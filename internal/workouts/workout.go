package workouts

import "time"

// Workout is a single recorded training session. Duration is in
// seconds, Distance in kilometers.
type Workout struct {
	ID             int       `json:"id"`
	UserID         int       `json:"userId"`
	WorkoutType    string    `json:"workoutType"`
	Duration       int       `json:"duration"`
	Distance       *float64  `json:"distance,omitempty"`
	CaloriesBurned *int      `json:"caloriesBurned,omitempty"`
	Intensity      string    `json:"intensity,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
