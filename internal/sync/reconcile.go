package sync

import "fmt"

// OpKind tells a create from an update.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
)

// String returns the string representation of an operation kind.
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Operation is a single write against the target database. RowID is set
// only for updates.
type Operation struct {
	Kind  OpKind
	Issue RemoteIssue
	RowID string
}

// String describes the operation for logs.
func (op Operation) String() string {
	if op.Kind == OpUpdate {
		return fmt.Sprintf("update #%d -> %s", op.Issue.Number, op.RowID)
	}
	return fmt.Sprintf("%s #%d", op.Kind, op.Issue.Number)
}

// Plan is the outcome of reconciliation. Both lists keep the input order.
type Plan struct {
	Creates []Operation
	Updates []Operation
}

// RowMapping maps issue numbers to the ids of the rows that mirror them. It
// is built once per run and never changes afterwards.
type RowMapping struct {
	rows map[int]string
}

// NewRowMapping copies rows into a new mapping.
func NewRowMapping(rows map[int]string) RowMapping {
	m := make(map[int]string, len(rows))
	for number, id := range rows {
		m[number] = id
	}
	return RowMapping{rows: m}
}

// Lookup returns the row id for an issue number.
func (m RowMapping) Lookup(number int) (string, bool) {
	id, ok := m.rows[number]
	return id, ok
}

// Len returns the number of mapped issues.
func (m RowMapping) Len() int {
	return len(m.rows)
}

// Reconcile routes every issue to an update when its number already has a
// row, and to a create otherwise. It is a single pass with no side effects:
// the same inputs always give the same plan.
func Reconcile(issues []RemoteIssue, rows RowMapping) Plan {
	var plan Plan
	for _, issue := range issues {
		if rowID, ok := rows.Lookup(issue.Number); ok {
			plan.Updates = append(plan.Updates, Operation{Kind: OpUpdate, Issue: issue, RowID: rowID})
			continue
		}
		plan.Creates = append(plan.Creates, Operation{Kind: OpCreate, Issue: issue})
	}
	return plan
}
