package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/durable/internal/action"
	"github.com/roach88/durable/internal/store"
)

// Assertion validates requested actions or the pass journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an action was requested, optionally with input
	// - "trace_order": Check actions were requested in order
	// - "trace_count": Check an action was requested exactly N times
	// - "final_state": Query a journal table and verify expected values
	Type string `yaml:"type"`

	// Action names an action (used by trace_contains, trace_count).
	// Activities are named by function, external events by event name, and
	// timers by "timer".
	Action string `yaml:"action,omitempty"`

	// Input is the expected action input (used by trace_contains).
	// Compared by canonical JSON; nil matches any input.
	Input any `yaml:"input,omitempty"`

	// Table is the journal table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: trace_contains requires action", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order requires at least 2 actions", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: trace_count requires action", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: trace_count requires non-negative count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: final_state requires table", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: final_state requires expect", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Actions  []action.Action // Requested actions for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Actions) > 0 {
		fmt.Fprintf(&buf, "\nRequested actions:\n")
		for i, a := range e.Actions {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", i+1, a.Type, actionName(a))
		}
	}
	return buf.String()
}

// actionName is the name assertions use for an action.
func actionName(a action.Action) string {
	switch a.Type {
	case action.TypeCreateTimer:
		return "timer"
	case action.TypeWaitForExternalEvent:
		return a.ExternalEventName
	default:
		return a.FunctionName
	}
}

// assertTraceContains checks that an action with the given name (and input,
// when specified) was requested.
func assertTraceContains(actions []action.Action, assertion Assertion) error {
	for _, a := range actions {
		if actionName(a) != assertion.Action {
			continue
		}
		if assertion.Input == nil || canonicalEqual(a.Input, assertion.Input) {
			return nil
		}
	}

	expected := fmt.Sprintf("action %s", assertion.Action)
	if assertion.Input != nil {
		expected += fmt.Sprintf(" with input %s", canonicalString(assertion.Input))
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in requested actions",
		Actions:  actions,
	}
}

// assertTraceOrder checks if actions were requested in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(actions []action.Action, assertion Assertion) error {
	// Find first position of each expected action (1-indexed for readability)
	positions := make(map[string]int)
	for i, a := range actions {
		name := actionName(a)
		if positions[name] == 0 {
			positions[name] = i + 1
		}
	}

	for _, name := range assertion.Actions {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", name),
				Actions:  actions,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Actions: actions,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action was requested exactly the specified number of times.
func assertTraceCount(actions []action.Action, assertion Assertion) error {
	count := 0
	for _, a := range actions {
		if actionName(a) == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Actions:  actions,
		}
	}
	return nil
}

// assertFinalState checks that exactly one journal row matches the where
// clause and that it holds the expected values.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Sorted for a stable first failure
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected YAML values with SQLite column values.
// SQLite returns integers as int64, text as string or []byte, and stores
// booleans as integers.
func stateValuesEqual(expected, actual any) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		act, ok := actual.(string)
		return ok && exp == act
	case int:
		act, ok := actual.(int64)
		return ok && int64(exp) == act
	case int64:
		act, ok := actual.(int64)
		return ok && exp == act
	case bool:
		if act, ok := actual.(bool); ok {
			return exp == act
		}
		act, ok := actual.(int64)
		return ok && exp == (act != 0)
	default:
		return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store      *store.Store
	Ctx        context.Context
	InstanceID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	actions := result.Actions()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(actions, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(actions, assertion)
		case AssertTraceCount:
			err = assertTraceCount(actions, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires journal context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
