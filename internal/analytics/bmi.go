package analytics

// BMI computes the Body Mass Index, weight(kg) / height(m)^2, rounded
// to 1 decimal. Non-positive inputs yield 0.
func BMI(weightKG, heightCM float64) float64 {
	if weightKG <= 0 || heightCM <= 0 {
		return 0
	}
	heightM := heightCM / 100
	return Round1(weightKG / (heightM * heightM))
}

// BMICategory returns the WHO classification for a BMI value.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal weight"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obese"
	}
}
