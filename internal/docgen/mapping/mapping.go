package mapping

import (
	"fmt"
	"strings"

	"github.com/dealdocs/engine/internal/docgen/expr"
	"github.com/dealdocs/engine/internal/models"
)

// Placeholder prefixes reserve a field for the signing step.
const (
	PrefixSignature  = "SIGNATURE_"
	PrefixInitials   = "INITIALS_"
	PrefixDateSigned = "DATE_SIGNED_"
)

var placeholderPrefixes = []string{PrefixSignature, PrefixInitials, PrefixDateSigned}

// ResolvedField is one mapping's outcome. Skipped fields carry no value.
type ResolvedField struct {
	PDFFieldName string
	Value        string
	Skipped      bool
}

// Result is the resolver output for one template.
type Result struct {
	Fields             []ResolvedField
	ValidationErrors   []string
	RequiredSignatures []string
}

// IsSpecialPlaceholder reports whether dataPath is a signing placeholder rather than an expression.
func IsSpecialPlaceholder(dataPath string) bool {
	upper := strings.ToUpper(strings.TrimSpace(dataPath))
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// SignatureRole returns the signer role of a SIGNATURE_ placeholder, lower-cased.
// It returns "" for anything else, including INITIALS_ and DATE_SIGNED_.
func SignatureRole(dataPath string) string {
	trimmed := strings.TrimSpace(dataPath)
	if !strings.HasPrefix(strings.ToUpper(trimmed), PrefixSignature) {
		return ""
	}
	return strings.ToLower(trimmed[len(PrefixSignature):])
}

// Resolve evaluates every mapping in order. Missing required data is reported
// in ValidationErrors without stopping; placeholders are skipped and never validated.
func Resolve(mappings []models.FieldMapping, data expr.Context) Result {
	res := Result{Fields: make([]ResolvedField, 0, len(mappings))}
	seen := map[string]bool{}

	for _, m := range mappings {
		if IsSpecialPlaceholder(m.DataPath) {
			res.Fields = append(res.Fields, ResolvedField{PDFFieldName: m.PDFFieldName, Skipped: true})
			if role := SignatureRole(m.DataPath); role != "" && !seen[role] {
				seen[role] = true
				res.RequiredSignatures = append(res.RequiredSignatures, role)
			}
			continue
		}

		value := expr.Evaluate(m.DataPath, data)
		s := expr.Stringify(value)
		if m.Required && s == "" {
			res.ValidationErrors = append(res.ValidationErrors,
				fmt.Sprintf("%s: missing data for %s", m.PDFFieldName, m.DataPath))
		}
		res.Fields = append(res.Fields, ResolvedField{PDFFieldName: m.PDFFieldName, Value: s})
	}
	return res
}
