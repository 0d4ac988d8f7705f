package mockserver

import "github.com/kilianp07/carprice/core/model"

// Brands accepted by the simulated predictor, in the order it lists them.
var Brands = []string{
	"MERCEDES", "VW", "PEUGEOT", "KIA", "CITROEN", "BMW", "Fiat", "OTHER_BRAND",
	"Audi", "CHINESE", "HYUNDAI", "Toyota", "SUZUKI", "RENAULT", "Dacia",
	"JAPANESE", "Ford", "MG", "GWM", "SEAT", "AMERICAN", "NISSAN", "CHERY",
	"SKODA", "Porsche", "LUXURY_BRAND", "Opel", "Mini", "Land Rover", "UTILITY",
}

// LuxuryBrands is the subset priced as premium.
var LuxuryBrands = []string{"BMW", "MERCEDES", "Audi", "Porsche", "Land Rover", "LUXURY_BRAND", "Mini"}

// BrandCategories groups brands by market segment.
var BrandCategories = map[string][]string{
	"Economic_European": {"PEUGEOT", "CITROEN", "RENAULT", "Fiat", "SEAT", "Dacia", "Opel", "SKODA", "Ford"},
	"Premium_European":  {"BMW", "MERCEDES", "Audi", "VW", "Porsche", "Land Rover", "Mini", "LUXURY_BRAND"},
	"Asian":             {"Toyota", "HYUNDAI", "KIA", "SUZUKI", "NISSAN", "JAPANESE"},
	"Chinese":           {"CHINESE", "MG", "GWM", "CHERY"},
	"Other":             {"OTHER_BRAND", "AMERICAN", "UTILITY"},
}

// Catalog returns the option catalog served on /api/brands.
func Catalog() model.OptionCatalog {
	return model.OptionCatalog{
		Brands:          Brands,
		Energies:        model.DefaultEnergies(),
		Transmissions:   model.DefaultTransmissions(),
		LuxuryBrands:    LuxuryBrands,
		BrandCategories: BrandCategories,
	}.Clone()
}
