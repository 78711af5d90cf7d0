package pdfform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPULoader loads AcroForms with pdfcpu.
type PDFCPULoader struct {
	conf *model.Configuration
}

func NewPDFCPULoader() *PDFCPULoader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPULoader{conf: conf}
}

var _ FormLoader = (*PDFCPULoader)(nil)

func (l *PDFCPULoader) Load(ctx context.Context, pdf []byte) (Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := api.FormFields(bytes.NewReader(pdf), l.conf)
	if err != nil {
		return nil, fmt.Errorf("read form fields: %w", err)
	}

	f := &pdfcpuForm{
		src:    pdf,
		conf:   l.conf,
		kinds:  make(map[string]form.FieldType, len(fields)),
		values: map[string]any{},
	}
	for _, fld := range fields {
		f.kinds[fld.Name] = fld.Typ
		f.order = append(f.order, fld.Name)
	}
	return f, nil
}

type pdfcpuForm struct {
	src    []byte
	conf   *model.Configuration
	kinds  map[string]form.FieldType
	order  []string
	values map[string]any
}

func (f *pdfcpuForm) Field(name string) (Field, error) {
	kind, ok := f.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	switch kind {
	case form.FTText, form.FTDate:
		return NewTextField(name, func(v string) { f.values[name] = v }), nil
	case form.FTCheckBox:
		return NewCheckboxField(name, func(v bool) { f.values[name] = v }), nil
	}
	return &UnsupportedField{FieldName: name, Kind: fmt.Sprintf("%v", kind)}, nil
}

// fillJSON mirrors the pdfcpu form import format.
type fillJSON struct {
	Forms []fillForm `json:"forms"`
}

type fillForm struct {
	TextFields []textValue  `json:"textfield,omitempty"`
	DateFields []textValue  `json:"datefield,omitempty"`
	CheckBoxes []checkValue `json:"checkbox,omitempty"`
}

type textValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type checkValue struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Serialize returns the source bytes untouched when nothing was written.
func (f *pdfcpuForm) Serialize() ([]byte, error) {
	if len(f.values) == 0 {
		return f.src, nil
	}

	var ff fillForm
	for _, name := range f.order {
		v, ok := f.values[name]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if f.kinds[name] == form.FTDate {
				ff.DateFields = append(ff.DateFields, textValue{Name: name, Value: t})
			} else {
				ff.TextFields = append(ff.TextFields, textValue{Name: name, Value: t})
			}
		case bool:
			ff.CheckBoxes = append(ff.CheckBoxes, checkValue{Name: name, Value: t})
		}
	}
	payload, err := json.Marshal(fillJSON{Forms: []fillForm{ff}})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(f.src), bytes.NewReader(payload), &out, f.conf); err != nil {
		return nil, fmt.Errorf("fill form: %w", err)
	}
	return out.Bytes(), nil
}
