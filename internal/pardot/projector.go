package pardot

import "github.com/ignite/attribution-relay/internal/attribution"

// WPFormsProjector maps stored attribution onto WPForms input names using a
// configured field map, e.g. utm_source -> "wpforms[fields][12]". Slots
// without a mapping or without a stored value are skipped; WPForms has no
// not-set convention.
type WPFormsProjector struct {
	fieldNames map[string]string
}

// NewWPFormsProjector builds a projector from the attribution-key to
// form-field-name mapping.
func NewWPFormsProjector(fieldNames map[string]string) *WPFormsProjector {
	return &WPFormsProjector{fieldNames: fieldNames}
}

// ProjectFields returns the mapped, non-empty fields of the record.
func (p *WPFormsProjector) ProjectFields(rec *attribution.Record) []attribution.Field {
	if rec == nil {
		return nil
	}
	var fields []attribution.Field
	for _, name := range attribution.FieldNames {
		target, ok := p.fieldNames[name]
		if !ok {
			continue
		}
		if value := rec.ValueOf(name); value != "" {
			fields = append(fields, attribution.Field{Name: target, Value: value})
		}
	}
	return fields
}
