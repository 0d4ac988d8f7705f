package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/carprice/core/model"
)

func testCatalog() model.OptionCatalog {
	return model.OptionCatalog{
		Brands:          []string{"BMW", "Dacia"},
		Energies:        []string{"Diesel", "Essence"},
		Transmissions:   []string{"Manuelle"},
		LuxuryBrands:    []string{"BMW"},
		BrandCategories: map[string][]string{"Premium_European": {"BMW"}},
	}
}

func TestWriteCatalogTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCatalog(&buf, testCatalog(), "table"))
	out := buf.String()
	assert.Regexp(t, `BMW\s+Premium_European\s+oui`, out)
	assert.Contains(t, out, "Énergies: Diesel, Essence")
	assert.Contains(t, out, "Boîtes: Manuelle")
}

func TestWriteCatalogJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCatalog(&buf, testCatalog(), "json"))
	var doc catalogDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, brandDoc{Name: "BMW", Category: "Premium_European", Luxury: true}, doc.Brands[0])
	assert.Equal(t, brandDoc{Name: "Dacia"}, doc.Brands[1])
}

func TestWriteCatalogYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCatalog(&buf, testCatalog(), "yaml"))
	var doc catalogDoc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []string{"Manuelle"}, doc.Transmissions)
	assert.True(t, doc.Brands[0].Luxury)
}

func TestWriteCatalogUnknownFormat(t *testing.T) {
	assert.Error(t, writeCatalog(&bytes.Buffer{}, testCatalog(), "xml"))
}
