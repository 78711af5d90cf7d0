package pdfform

import (
	"context"
	"fmt"
	"strings"

	"github.com/dealdocs/engine/internal/docgen/mapping"
	"github.com/dealdocs/engine/pkg/logger"
	"go.uber.org/zap"
)

// FillResult is the filled document plus counts for logging.
type FillResult struct {
	Bytes        []byte
	FilledCount  int
	SkippedCount int
}

// Filler writes resolved values into a template's form fields.
type Filler struct {
	loader FormLoader
}

func NewFiller(loader FormLoader) *Filler {
	return &Filler{loader: loader}
}

// Fill loads templateBytes and writes every non-skipped field. A field that is
// missing from the form or of an unsupported kind is counted as skipped; only
// load and serialize failures are returned as errors.
func (f *Filler) Fill(ctx context.Context, templateBytes []byte, fields []mapping.ResolvedField) (*FillResult, error) {
	form, err := f.loader.Load(ctx, templateBytes)
	if err != nil {
		return nil, fmt.Errorf("load pdf form: %w", err)
	}

	res := &FillResult{}
	for _, rf := range fields {
		if rf.Skipped {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fld, err := form.Field(rf.PDFFieldName)
		if err != nil {
			logger.L().Warn("pdf field lookup failed", zap.String("field", rf.PDFFieldName), zap.Error(err))
			res.SkippedCount++
			continue
		}

		switch t := fld.(type) {
		case *TextField:
			t.SetText(rf.Value)
		case *CheckboxField:
			if truthy(rf.Value) {
				t.Check()
			} else {
				t.Uncheck()
			}
		case *UnsupportedField:
			logger.L().Warn("unsupported pdf field type",
				zap.String("field", rf.PDFFieldName), zap.String("kind", t.Kind))
			res.SkippedCount++
			continue
		default:
			res.SkippedCount++
			continue
		}
		res.FilledCount++
	}

	out, err := form.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize pdf form: %w", err)
	}
	res.Bytes = out
	return res, nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "1":
		return true
	}
	return false
}
