package attribution

// Record is the persisted attribution unit describing how a visitor arrived.
// Every field is always present as a string; absent values are empty strings,
// so consumers never have to distinguish missing from blank.
type Record struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Term     string `json:"utm_term"`
	Content  string `json:"utm_content"`
	GCLID    string `json:"utm_gclid"`
	FBCLID   string `json:"utm_fbclid"`
}

// Field is a single named attribution value, in wire naming.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldNames is the fixed order in which record fields travel in outbound
// payloads and projections.
var FieldNames = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"utm_gclid",
	"utm_fbclid",
}

// Direct returns the record written for direct traffic.
func Direct() Record {
	return Record{Source: "direct", Medium: "none"}
}

// IsZero reports whether no field carries a value.
func (r Record) IsZero() bool {
	return r == Record{}
}

// ValueOf returns the field value for a wire name, empty for unknown names.
func (r Record) ValueOf(name string) string {
	switch name {
	case "utm_source":
		return r.Source
	case "utm_medium":
		return r.Medium
	case "utm_campaign":
		return r.Campaign
	case "utm_term":
		return r.Term
	case "utm_content":
		return r.Content
	case "utm_gclid":
		return r.GCLID
	case "utm_fbclid":
		return r.FBCLID
	}
	return ""
}

// Fields returns the non-empty fields of the record in wire order, for
// embedding in an outbound submission payload.
func (r Record) Fields() []Field {
	var fields []Field
	for _, name := range FieldNames {
		if v := r.ValueOf(name); v != "" {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}
	return fields
}
