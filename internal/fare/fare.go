// Package fare computes concession discounts on base fares.
package fare

import (
	"math"
	"strings"
)

type Concession string

const (
	ConcessionNone          Concession = "None"
	ConcessionStudent       Concession = "Student"
	ConcessionSeniorCitizen Concession = "Senior Citizen"
	ConcessionCancerPatient Concession = "Cancer Patient"
)

var rates = map[Concession]float64{
	ConcessionNone:          0,
	ConcessionStudent:       0.25,
	ConcessionSeniorCitizen: 0.13,
	ConcessionCancerPatient: 0.569,
}

var labels = map[Concession]string{
	ConcessionNone:          "0%",
	ConcessionStudent:       "25%",
	ConcessionSeniorCitizen: "13%",
	ConcessionCancerPatient: "56.9%",
}

type Quote struct {
	BaseFare   float64    `json:"base_fare"`
	Concession Concession `json:"concession"`
	Rate       float64    `json:"rate"`
	Discount   float64    `json:"discount"`
	FinalFare  float64    `json:"final_fare"`
}

// ParseConcession maps user input to a concession category. The second
// result is false when the input is not recognized, in which case None is
// returned.
func ParseConcession(s string) (Concession, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch normalized {
	case "", "none":
		return ConcessionNone, normalized == "none"
	case "student":
		return ConcessionStudent, true
	case "seniorcitizen", "senior":
		return ConcessionSeniorCitizen, true
	case "cancerpatient":
		return ConcessionCancerPatient, true
	default:
		return ConcessionNone, false
	}
}

func Rate(c Concession) float64 {
	return rates[c]
}

// Compute applies the concession discount to baseFare.
func Compute(baseFare float64, c Concession) Quote {
	rate, ok := rates[c]
	if !ok {
		c = ConcessionNone
	}
	discount := baseFare * rate
	return Quote{
		BaseFare:   baseFare,
		Concession: c,
		Rate:       rate,
		Discount:   discount,
		FinalFare:  baseFare - discount,
	}
}

// CalculateDiscount is the string-typed entry point used by callers that
// hold raw form input. Unknown categories get no discount.
func CalculateDiscount(baseFare float64, concession string) float64 {
	c, _ := ParseConcession(concession)
	return Compute(baseFare, c).Discount
}

func CalculateFinalFare(baseFare float64, concession string) float64 {
	c, _ := ParseConcession(concession)
	return Compute(baseFare, c).FinalFare
}

func DiscountPercentage(c Concession) string {
	if label, ok := labels[c]; ok {
		return label
	}
	return labels[ConcessionNone]
}

// Round2 rounds an amount to cents for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
