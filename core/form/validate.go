package form

import (
	"time"

	"github.com/kilianp07/carprice/core/model"
)

// Validate checks q against the client side rules in order: brand, year,
// mileage, fiscal power. Only the first failure is reported.
func Validate(q model.VehicleQuery, now time.Time) error {
	if q.Brand == "" {
		return &ValidationError{Kind: MissingBrand, Field: model.FieldBrand}
	}
	if q.Year < model.MinYear || q.Year > now.Year() {
		return &ValidationError{Kind: InvalidYear, Field: model.FieldYear, Value: q.Year}
	}
	if q.Mileage < 0 {
		return &ValidationError{Kind: InvalidMileage, Field: model.FieldMileage, Value: q.Mileage}
	}
	if q.FiscalPower < 1 {
		return &ValidationError{Kind: InvalidFiscalPower, Field: model.FieldFiscalPower, Value: q.FiscalPower}
	}
	return nil
}
