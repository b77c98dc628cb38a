package droframe

import "fmt"

// Schema describes the column layout of a Frame. Exactly one column is the
// label; all remaining columns are features.
type Schema struct {
	Columns     []string
	LabelColumn string
}

// TrainingSchema returns the fixed training layout: a "label" column
// followed by 28 numbered feature columns.
func TrainingSchema() Schema {
	columns := []string{"label"}
	for i := 1; i <= 28; i++ {
		columns = append(columns, fmt.Sprintf("feature-%02d", i))
	}
	return Schema{
		Columns:     columns,
		LabelColumn: "label",
	}
}

// NumColumns returns the total column count, label included.
func (s Schema) NumColumns() int {
	return len(s.Columns)
}

// FeatureColumns returns the schema's columns minus the label column.
func (s Schema) FeatureColumns() []string {
	features := make([]string, 0, len(s.Columns)-1)
	for _, name := range s.Columns {
		if name != s.LabelColumn {
			features = append(features, name)
		}
	}
	return features
}

// ColumnIndex returns the index of the named column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col == name {
			return i
		}
	}
	return -1
}
