package nutrition

import "time"

// Entry is a single logged meal. Protein, Carbohydrates and Fat are in
// grams.
type Entry struct {
	ID            int       `json:"id"`
	UserID        int       `json:"userId"`
	MealType      string    `json:"mealType"`
	FoodName      string    `json:"foodName"`
	Calories      int       `json:"calories"`
	Protein       *float64  `json:"protein,omitempty"`
	Carbohydrates *float64  `json:"carbohydrates,omitempty"`
	Fat           *float64  `json:"fat,omitempty"`
	Portion       string    `json:"portion,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
