package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/services"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// manifest is the YAML file accepted by `docsctl templates import`.
//
//	dealership_id: 6f1c...
//	templates:
//	  - name: Bill of Sale
//	    category: sale
//	    pdf: forms/bill_of_sale.pdf
//	    mappings:
//	      - {pdfFieldName: BuyerName, dataPath: client.fullName, required: true}
type manifest struct {
	DealershipID string             `yaml:"dealership_id"`
	Templates    []manifestTemplate `yaml:"templates"`
}

type manifestTemplate struct {
	Name      string                `yaml:"name"`
	Category  string                `yaml:"category"`
	SortOrder int                   `yaml:"sort_order"`
	PDF       string                `yaml:"pdf"`
	Mappings  []models.FieldMapping `yaml:"mappings"`
}

// parseManifest decodes r and loads each template's PDF relative to baseDir.
func parseManifest(r io.Reader, baseDir string, readFile func(string) ([]byte, error)) ([]services.ImportTemplateInput, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	dealershipID, err := uuid.Parse(m.DealershipID)
	if err != nil {
		return nil, fmt.Errorf("dealership_id: %w", err)
	}
	if len(m.Templates) == 0 {
		return nil, fmt.Errorf("manifest lists no templates")
	}

	out := make([]services.ImportTemplateInput, 0, len(m.Templates))
	for i, t := range m.Templates {
		if t.PDF == "" {
			return nil, fmt.Errorf("templates[%d] %q: pdf is required", i, t.Name)
		}
		path := t.PDF
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		pdf, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("templates[%d] %q: %w", i, t.Name, err)
		}
		out = append(out, services.ImportTemplateInput{
			DealershipID: dealershipID,
			Name:         t.Name,
			Category:     t.Category,
			SortOrder:    t.SortOrder,
			Mappings:     t.Mappings,
			PDF:          pdf,
		})
	}
	return out, nil
}
