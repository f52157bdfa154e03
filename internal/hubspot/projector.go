package hubspot

import "github.com/ignite/attribution-relay/internal/attribution"

// NotSet is the signal-of-absence marker projected into form fields that
// have no stored value. The downstream CRM distinguishes "not-set" from a
// field that was never touched.
const NotSet = "not-set"

// FormProjector maps stored attribution onto HubSpot hidden form fields.
// HubSpot wraps each hidden input in a container classed hs_<field name>,
// so utm_source projects as hs_utm_source.
type FormProjector struct{}

// ProjectFields returns one field per attribution slot. Every slot is
// projected; empty values carry the NotSet marker rather than a blank.
func (FormProjector) ProjectFields(rec *attribution.Record) []attribution.Field {
	fields := make([]attribution.Field, 0, len(attribution.FieldNames))
	for _, name := range attribution.FieldNames {
		value := ""
		if rec != nil {
			value = rec.ValueOf(name)
		}
		if value == "" {
			value = NotSet
		}
		fields = append(fields, attribution.Field{Name: "hs_" + name, Value: value})
	}
	return fields
}
