// Package render turns prediction states into the text shown to the user.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
)

// Currency is appended to every amount.
const Currency = "DT"

// SubmittingLabel replaces the submit label while a request is in flight.
const SubmittingLabel = "Prédiction..."

// Formatter renders amounts with the digit grouping of a locale.
type Formatter struct {
	p *message.Printer
}

// New returns a formatter for tag.
func New(tag language.Tag) *Formatter {
	return &Formatter{p: message.NewPrinter(tag)}
}

// Default groups thousands with commas: 45000 -> "45,000".
var Default = New(language.English)

// Number rounds v to an integer and groups its digits.
func (f *Formatter) Number(v float64) string {
	return f.p.Sprintf("%d", int64(math.Round(v)))
}

// Price formats v as "45,000 DT".
func (f *Formatter) Price(v float64) string {
	return f.Number(v) + " " + Currency
}

// Range formats a confidence interval as "42,000 DT — 48,000 DT".
func (f *Formatter) Range(min, max float64) string {
	return f.Price(min) + " — " + f.Price(max)
}

// Card returns the lines of the result card, in display order.
func (f *Formatter) Card(r model.PredictionResult) []string {
	name := strings.TrimSpace(r.Brand + " " + r.Model)
	return []string{
		f.Price(r.PredictedPrice),
		"Estimation",
		"Marque: " + name,
		fmt.Sprintf("Année: %d • Kilométrage: %s km", r.Year, f.Number(r.Mileage)),
		"Confiance",
		f.Range(r.PriceMin, r.PriceMax),
		fmt.Sprintf("Age: %d ans", r.Age),
	}
}

// State returns the text for st. Idle renders as nothing.
func (f *Formatter) State(st prediction.State) string {
	switch st.Phase {
	case prediction.Submitting:
		return SubmittingLabel
	case prediction.Success:
		if st.Result == nil {
			return ""
		}
		return strings.Join(f.Card(*st.Result), "\n")
	case prediction.Failed:
		return st.Message
	default:
		return ""
	}
}

// Write prints the text for st followed by a newline, if there is any.
func (f *Formatter) Write(w io.Writer, st prediction.State) error {
	s := f.State(st)
	if s == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, s)
	return err
}

// Price formats v with the default formatter.
func Price(v float64) string { return Default.Price(v) }

// Range formats an interval with the default formatter.
func Range(min, max float64) string { return Default.Range(min, max) }
