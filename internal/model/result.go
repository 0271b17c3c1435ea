package model

// FieldType is the answer type of a survey field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// FieldDescriptor is one survey question derived from a column header or
// a scanned form.
type FieldDescriptor struct {
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
}

// Result is the output of one extraction. Mode decides which variant is
// populated: Transactions and RowCount for reconciliation, Fields for general.
type Result struct {
	Mode         Mode              `json:"mode"`
	Transactions []Transaction     `json:"transactions,omitempty"`
	RowCount     int               `json:"rowCount,omitempty"`
	Fields       []FieldDescriptor `json:"fields,omitempty"`
}

// Empty reports whether the result carries no transactions and no fields.
func (r Result) Empty() bool {
	return len(r.Transactions) == 0 && len(r.Fields) == 0
}
