package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
dealership_id: 2b7c1f7e-8e55-4c1a-9d55-0d3c6b1c0a11
templates:
  - name: Bill of Sale
    category: sale
    sort_order: 1
    pdf: forms/bill_of_sale.pdf
    mappings:
      - pdfFieldName: BuyerName
        dataPath: client.fullName
        required: true
      - pdfFieldName: SIGNATURE_BUYER
        dataPath: ""
  - name: Odometer
    category: title
    pdf: /abs/odometer.pdf
    mappings:
      - {pdfFieldName: VIN, dataPath: vehicle.vin}
`

func TestParseManifest(t *testing.T) {
	read := map[string]string{}
	inputs, err := parseManifest(strings.NewReader(sampleManifest), "/srv/templates", func(p string) ([]byte, error) {
		read[p] = p
		return []byte("%PDF-" + p), nil
	})
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "Bill of Sale", inputs[0].Name)
	assert.Equal(t, 1, inputs[0].SortOrder)
	require.Len(t, inputs[0].Mappings, 2)
	assert.True(t, inputs[0].Mappings[0].Required)
	assert.Equal(t, "client.fullName", inputs[0].Mappings[0].DataPath)
	assert.Equal(t, inputs[0].DealershipID, inputs[1].DealershipID)

	assert.Contains(t, read, filepath.Join("/srv/templates", "forms/bill_of_sale.pdf"))
	assert.Contains(t, read, "/abs/odometer.pdf")
}

func TestParseManifestErrors(t *testing.T) {
	okRead := func(string) ([]byte, error) { return []byte("%PDF"), nil }

	_, err := parseManifest(strings.NewReader("dealership_id: nope\ntemplates: []\n"), ".", okRead)
	require.ErrorContains(t, err, "dealership_id")

	_, err = parseManifest(strings.NewReader("dealership_id: 2b7c1f7e-8e55-4c1a-9d55-0d3c6b1c0a11\n"), ".", okRead)
	require.ErrorContains(t, err, "no templates")

	_, err = parseManifest(strings.NewReader("dealership_id: 2b7c1f7e-8e55-4c1a-9d55-0d3c6b1c0a11\nbogus: 1\n"), ".", okRead)
	require.ErrorContains(t, err, "decode manifest")

	_, err = parseManifest(strings.NewReader(sampleManifest), ".", func(string) ([]byte, error) {
		return nil, errors.New("missing file")
	})
	require.ErrorContains(t, err, "missing file")
}
