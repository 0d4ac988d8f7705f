package model

import (
	"fmt"
	"time"
)

// Wire names of the VehicleQuery fields. They double as the field names
// accepted by the form controller.
const (
	FieldBrand        = "marque"
	FieldModel        = "modele"
	FieldYear         = "annee"
	FieldMileage      = "kilometrage"
	FieldEnergy       = "energie"
	FieldTransmission = "boite_vitesses"
	FieldFiscalPower  = "puissance_fiscale"
)

// Fields lists every VehicleQuery field in form order.
var Fields = []string{
	FieldBrand, FieldModel, FieldYear, FieldMileage,
	FieldEnergy, FieldTransmission, FieldFiscalPower,
}

const (
	// MinYear is the oldest accepted manufacturing year.
	MinYear = 1900

	defaultMileage     = 50000
	defaultEnergy      = "Diesel"
	defaultGearbox     = "Manuelle"
	defaultFiscalPower = 7
)

// VehicleQuery holds the vehicle attributes sent to the predictor.
type VehicleQuery struct {
	Brand        string `json:"marque"`
	Model        string `json:"modele"`
	Year         int    `json:"annee"`
	Mileage      int    `json:"kilometrage"`
	Energy       string `json:"energie"`
	Transmission string `json:"boite_vitesses"`
	FiscalPower  int    `json:"puissance_fiscale"`
}

// DefaultQuery returns the initial form values for the given point in time.
func DefaultQuery(now time.Time) VehicleQuery {
	return VehicleQuery{
		Year:         now.Year(),
		Mileage:      defaultMileage,
		Energy:       defaultEnergy,
		Transmission: defaultGearbox,
		FiscalPower:  defaultFiscalPower,
	}
}

// String returns a short human readable description.
func (q VehicleQuery) String() string {
	name := q.Brand
	if q.Model != "" {
		name += " " + q.Model
	}
	return fmt.Sprintf("%s (%d, %d km, %s, %s, %d CV)",
		name, q.Year, q.Mileage, q.Energy, q.Transmission, q.FiscalPower)
}

// PredictionResult is the payload of a successful prediction.
type PredictionResult struct {
	PredictedPrice float64 `json:"prix_predit"`
	PriceMin       float64 `json:"prix_min"`
	PriceMax       float64 `json:"prix_max"`
	Brand          string  `json:"marque"`
	Model          string  `json:"modele"`
	Year           int     `json:"annee"`
	// Mileage is echoed as a float by the predictor.
	Mileage      float64 `json:"kilometrage"`
	Age          int     `json:"age"`
	Energy       string  `json:"energie,omitempty"`
	Transmission string  `json:"boite_vitesses,omitempty"`
	FiscalPower  int     `json:"puissance_fiscale,omitempty"`
}

// Validate checks that the price range brackets the point estimate.
func (r PredictionResult) Validate() error {
	if r.PriceMin > r.PriceMax {
		return fmt.Errorf("price_min %.0f above price_max %.0f", r.PriceMin, r.PriceMax)
	}
	if r.PredictedPrice < r.PriceMin || r.PredictedPrice > r.PriceMax {
		return fmt.Errorf("predicted price %.0f outside [%.0f, %.0f]", r.PredictedPrice, r.PriceMin, r.PriceMax)
	}
	return nil
}
