package form

import (
	"errors"
	"fmt"
)

// Kind identifies which validation rule failed.
type Kind int

const (
	MissingBrand Kind = iota + 1
	InvalidYear
	InvalidMileage
	InvalidFiscalPower
)

func (k Kind) String() string {
	switch k {
	case MissingBrand:
		return "missing brand"
	case InvalidYear:
		return "invalid year"
	case InvalidMileage:
		return "invalid mileage"
	case InvalidFiscalPower:
		return "invalid fiscal power"
	default:
		return "unknown"
	}
}

var userMessages = map[Kind]string{
	MissingBrand:       "Veuillez sélectionner une marque.",
	InvalidYear:        "Année invalide.",
	InvalidMileage:     "Kilométrage invalide.",
	InvalidFiscalPower: "Puissance fiscale invalide.",
}

// ValidationError reports the first rule a query violates.
type ValidationError struct {
	Kind  Kind
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Value)
}

// UserMessage returns the message displayed next to the form.
func (e *ValidationError) UserMessage() string { return userMessages[e.Kind] }

// Is lets errors.Is match on the kind alone.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind && t.Field == "" && t.Value == nil
}

// Sentinels usable with errors.Is.
var (
	ErrMissingBrand       = &ValidationError{Kind: MissingBrand}
	ErrInvalidYear        = &ValidationError{Kind: InvalidYear}
	ErrInvalidMileage     = &ValidationError{Kind: InvalidMileage}
	ErrInvalidFiscalPower = &ValidationError{Kind: InvalidFiscalPower}

	ErrUnknownField = errors.New("unknown field")
	ErrNotANumber   = errors.New("not a number")
	ErrOptionFetch  = errors.New("option catalog fetch failed")
)

// Messages shown when the option catalog cannot be loaded.
const (
	MsgCatalogUnavailable = "Impossible de récupérer la liste des marques."
	MsgCatalogNetwork     = "Erreur réseau lors de récupération des marques."
)

// CatalogError wraps ErrOptionFetch with the user facing message.
type CatalogError struct {
	Message string
	Err     error
}

func (e *CatalogError) Error() string {
	if e.Err == nil {
		return ErrOptionFetch.Error()
	}
	return fmt.Sprintf("%s: %v", ErrOptionFetch, e.Err)
}

func (e *CatalogError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrOptionFetch}
	}
	return []error{ErrOptionFetch, e.Err}
}

// UserMessage returns the message displayed when the catalog is missing.
func (e *CatalogError) UserMessage() string { return e.Message }
