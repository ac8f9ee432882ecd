package bodymetrics

import "time"

// Metric is a single body measurement log entry. All measurements are
// optional, a record may carry any subset of them.
type Metric struct {
	ID                int       `json:"id"`
	UserID            int       `json:"userId"`
	Weight            *float64  `json:"weight,omitempty"`            // kilograms
	BodyFatPercentage *float64  `json:"bodyFatPercentage,omitempty"` // percent
	MuscleMass        *float64  `json:"muscleMass,omitempty"`        // kilograms
	BMI               *float64  `json:"bmi,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	RecordedAt        time.Time `json:"recordedAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
