package model

// OptionCatalog is a snapshot of the enumerated choices offered by the form.
type OptionCatalog struct {
	Brands          []string            `json:"marques"`
	Energies        []string            `json:"energies"`
	Transmissions   []string            `json:"boites"`
	LuxuryBrands    []string            `json:"luxury_brands,omitempty"`
	BrandCategories map[string][]string `json:"brand_categories,omitempty"`
}

// DefaultEnergies returns the built-in energy types.
func DefaultEnergies() []string {
	return []string{"Diesel", "Essence", "Hybride", "Electrique", "GPL"}
}

// DefaultTransmissions returns the built-in gearbox types.
func DefaultTransmissions() []string {
	return []string{"Manuelle", "Automatique"}
}

// DefaultCatalog is used until the remote catalog has been loaded. The brand
// list is empty, which blocks submission until a brand is typed in.
func DefaultCatalog() OptionCatalog {
	return OptionCatalog{
		Brands:        []string{},
		Energies:      DefaultEnergies(),
		Transmissions: DefaultTransmissions(),
	}
}

// Clone returns a deep copy so snapshots can be handed out safely.
func (c OptionCatalog) Clone() OptionCatalog {
	out := OptionCatalog{
		Brands:        append([]string{}, c.Brands...),
		Energies:      append([]string{}, c.Energies...),
		Transmissions: append([]string{}, c.Transmissions...),
	}
	if c.LuxuryBrands != nil {
		out.LuxuryBrands = append([]string{}, c.LuxuryBrands...)
	}
	if c.BrandCategories != nil {
		out.BrandCategories = make(map[string][]string, len(c.BrandCategories))
		for k, v := range c.BrandCategories {
			out.BrandCategories[k] = append([]string{}, v...)
		}
	}
	return out
}

// IsLuxury reports whether brand is flagged as a luxury brand.
func (c OptionCatalog) IsLuxury(brand string) bool {
	for _, b := range c.LuxuryBrands {
		if b == brand {
			return true
		}
	}
	return false
}

// CategoryOf returns the category containing brand, or "" when unknown.
func (c OptionCatalog) CategoryOf(brand string) string {
	for cat, brands := range c.BrandCategories {
		for _, b := range brands {
			if b == brand {
				return cat
			}
		}
	}
	return ""
}
