// Package pdfform writes resolved mapping values into a PDF's AcroForm fields.
// Fields are never flattened, so the output stays editable.
package pdfform

import (
	"context"
	"errors"
)

// ErrFieldNotFound is returned by Form.Field when the form has no field with that name.
var ErrFieldNotFound = errors.New("pdf form field not found")

// Field is a closed set of field kinds: *TextField, *CheckboxField or *UnsupportedField.
// The kind is decided once when the form is loaded.
type Field interface {
	Name() string
	field()
}

// TextField accepts a string value.
type TextField struct {
	name string
	set  func(string)
}

func NewTextField(name string, set func(string)) *TextField {
	return &TextField{name: name, set: set}
}

func (f *TextField) Name() string     { return f.name }
func (f *TextField) SetText(v string) { f.set(v) }
func (*TextField) field()             {}

// CheckboxField is either checked or not.
type CheckboxField struct {
	name string
	set  func(bool)
}

func NewCheckboxField(name string, set func(bool)) *CheckboxField {
	return &CheckboxField{name: name, set: set}
}

func (f *CheckboxField) Name() string { return f.name }
func (f *CheckboxField) Check()       { f.set(true) }
func (f *CheckboxField) Uncheck()     { f.set(false) }
func (*CheckboxField) field()         {}

// UnsupportedField is any field kind the filler does not write (radio groups, list boxes, signatures).
type UnsupportedField struct {
	FieldName string
	Kind      string
}

func (f *UnsupportedField) Name() string { return f.FieldName }
func (*UnsupportedField) field()         {}

// Form is a loaded, mutable PDF form.
type Form interface {
	Field(name string) (Field, error)
	Serialize() ([]byte, error)
}

// FormLoader parses template bytes into a Form.
type FormLoader interface {
	Load(ctx context.Context, pdf []byte) (Form, error)
}
