package mockserver

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kilianp07/carprice/core/model"
)

// base prices in DT per brand category for a new vehicle of 7 CV
var categoryBase = map[string]float64{
	"Economic_European": 48000,
	"Premium_European":  110000,
	"Asian":             55000,
	"Chinese":           45000,
	"Other":             40000,
}

var energyFactor = map[string]float64{
	"Diesel":     1.0,
	"Essence":    0.96,
	"Hybride":    1.12,
	"Electrique": 1.18,
	"GPL":        0.88,
}

const (
	rangeSpread   = 0.10
	yearlyDecay   = 0.91
	luxuryPremium = 1.15
	autoPremium   = 1.06
	minPrice      = 1000
)

// Pricer is a deterministic stand-in for the trained model. It validates its
// input like the real service and prices with a simple depreciation curve.
type Pricer struct {
	Now func() time.Time
}

// Price returns the prediction for q, or an error whose text is sent back as
// the "error" field of a success=false answer.
func (p Pricer) Price(q model.VehicleQuery, mileage float64) (model.PredictionResult, error) {
	cat := Catalog()
	if !slices.Contains(cat.Brands, q.Brand) {
		return model.PredictionResult{}, fmt.Errorf("Marque '%s' non reconnue. Marques acceptées: %v", q.Brand, cat.Brands)
	}
	if !slices.Contains(cat.Energies, q.Energy) {
		return model.PredictionResult{}, fmt.Errorf("Énergie '%s' non reconnue. Valeurs acceptées: %v", q.Energy, cat.Energies)
	}
	if !slices.Contains(cat.Transmissions, q.Transmission) {
		return model.PredictionResult{}, fmt.Errorf("Boîte '%s' non reconnue. Valeurs acceptées: %v", q.Transmission, cat.Transmissions)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	age := now().Year() - q.Year
	if age < 0 {
		return model.PredictionResult{}, fmt.Errorf("L'année %d est dans le futur!", q.Year)
	}

	category := cat.CategoryOf(q.Brand)
	if category == "" {
		category = "Other"
	}
	price := categoryBase[category]
	price *= math.Pow(yearlyDecay, float64(age))
	price *= 1 - math.Min(math.Max(mileage, 0), 400000)/800000
	price *= 1 + 0.04*float64(q.FiscalPower-7)
	price *= energyFactor[q.Energy]
	if q.Transmission == "Automatique" {
		price *= autoPremium
	}
	if cat.IsLuxury(q.Brand) {
		price *= luxuryPremium
	}
	price = math.Max(math.Round(price), minPrice)

	return model.PredictionResult{
		PredictedPrice: price,
		PriceMin:       price * (1 - rangeSpread),
		PriceMax:       price * (1 + rangeSpread),
		Brand:          q.Brand,
		Model:          q.Model,
		Year:           q.Year,
		Mileage:        mileage,
		Age:            age,
		Energy:         q.Energy,
		Transmission:   q.Transmission,
		FiscalPower:    q.FiscalPower,
	}, nil
}
