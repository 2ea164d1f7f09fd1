package query

// OperatorTable maps operators to the fragments of one backend. Operators
// absent from Fragments are unsupported by that backend.
type OperatorTable struct {
	Dialect   string
	Fragments map[Operator]string
}

// Translate returns the fragment for op or an *UnsupportedOperatorError.
func (t OperatorTable) Translate(op Operator) (string, error) {
	if f, ok := t.Fragments[op]; ok {
		return f, nil
	}
	return "", Unsupported(t.Dialect, op)
}

// Rows lists every operator with its fragment; ok is false for unsupported ones.
func (t OperatorTable) Rows() []TableRow {
	rows := make([]TableRow, 0, len(operatorNames))
	for _, op := range Operators() {
		f, ok := t.Fragments[op]
		rows = append(rows, TableRow{Operator: op, Fragment: f, Supported: ok})
	}
	return rows
}

// TableRow is one line of an OperatorTable.
type TableRow struct {
	Operator  Operator
	Fragment  string
	Supported bool
}
