package dapmodel

import (
	"strconv"
	"strings"

	"github.com/marmos91/dapserve/internal/dapcode"
)

// recognizedKeywords is the fixed set of CE keywords (spec.md §3/§6).
// Unknown tokens are never consumed as keywords and fall through into the
// projection.
var recognizedKeywords = map[string]bool{
	"dap2": true, "dap2.0": true, "dap3.2": true, "dap4": true, "dap4.0": true,
}

// btpFunc materializes a new VariableTree from the one it is given.
type btpFunc func(tree VariableTree, args []string) (VariableTree, error)

// filterFunc mutates tree in place (projection or selection functions).
type filterFunc func(tree VariableTree, args []string) error

type funcEntry struct {
	kind   FunctionKind
	btp    btpFunc
	filter filterFunc
}

type btpCall struct {
	name string
	args []string
}

// SimpleEvaluator is a reference CEEvaluator: enough projection, slicing,
// keyword, and function-dispatch parsing to drive the response builder's
// control flow and exercise VariableTree. It is not a full CE grammar — the
// CE parser proper is an external collaborator by design.
type SimpleEvaluator struct {
	functions map[string]funcEntry

	pendingBTP           []btpCall
	wholeCEIsFunction    bool
	selectionClauses     []string
	recognizedKeywordSet map[string]bool
}

// NewSimpleEvaluator returns an evaluator with no functions registered.
func NewSimpleEvaluator() *SimpleEvaluator {
	return &SimpleEvaluator{
		functions:            make(map[string]funcEntry),
		recognizedKeywordSet: recognizedKeywords,
	}
}

// RegisterBTPFunction registers a server function that materializes a new
// tree (a "back to the parser" function, e.g. mean, linear_scale).
func (e *SimpleEvaluator) RegisterBTPFunction(name string, fn btpFunc) {
	e.functions[name] = funcEntry{kind: FunctionBTP, btp: fn}
}

// RegisterProjectionFunction registers a server function that filters the
// current projection in place.
func (e *SimpleEvaluator) RegisterProjectionFunction(name string, fn filterFunc) {
	e.functions[name] = funcEntry{kind: FunctionProjection, filter: fn}
}

// RegisterSelectionFunction registers a server function that filters
// sequence rows in place.
func (e *SimpleEvaluator) RegisterSelectionFunction(name string, fn filterFunc) {
	e.functions[name] = funcEntry{kind: FunctionSelection, filter: fn}
}

func (e *SimpleEvaluator) FindFunction(name string) (bool, FunctionKind) {
	entry, ok := e.functions[name]
	if !ok {
		return false, 0
	}
	return true, entry.kind
}

func (e *SimpleEvaluator) HasFunctionClauses() bool { return len(e.pendingBTP) > 0 }

func (e *SimpleEvaluator) HasFunctionalExpression() bool { return e.wholeCEIsFunction }

// EvalFunctionClauses runs every BTP call discovered by the last
// ParseConstraint call in order, threading the working tree through each.
func (e *SimpleEvaluator) EvalFunctionClauses(tree VariableTree) (VariableTree, error) {
	working := tree
	for _, call := range e.pendingBTP {
		entry := e.functions[call.name]
		newTree, err := entry.btp(working, call.args)
		if err != nil {
			return nil, err
		}
		working = newTree
	}
	return working, nil
}

// ParseConstraint parses ce against tree: strips recognized keywords,
// splits projection from selection on '&', dispatches function-call terms,
// and otherwise resolves dotted variable paths with optional slices.
func (e *SimpleEvaluator) ParseConstraint(ce string, tree VariableTree) error {
	e.pendingBTP = nil
	e.wholeCEIsFunction = false
	e.selectionClauses = nil

	projectionPart, selectionParts, _ := strings.Cut(ce, "&")
	projectionPart = e.stripKeywords(projectionPart)

	terms := splitTopLevelCommas(projectionPart)
	if len(terms) == 1 && isWholeFunctionCall(terms[0]) {
		e.wholeCEIsFunction = true
	}

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if name, args, ok := parseCallTerm(term); ok {
			found, kind := e.FindFunction(name)
			if !found {
				return dapcode.NewCEParseError("unknown function " + name)
			}
			switch kind {
			case FunctionBTP:
				e.pendingBTP = append(e.pendingBTP, btpCall{name: name, args: args})
			case FunctionProjection, FunctionSelection:
				entry := e.functions[name]
				if entry.filter != nil {
					if err := entry.filter(tree, args); err != nil {
						return err
					}
				}
			}
			continue
		}
		if err := applyProjectionTerm(tree, term); err != nil {
			return err
		}
	}

	if selectionParts != "" {
		e.selectionClauses = strings.Split(selectionParts, "&")
	}
	return nil
}

// EvaluateRow implements RowEvaluator: every selection clause ("name op
// value", op one of ==, !=, <=, >=, <, >) must hold for the row to pass.
func (e *SimpleEvaluator) EvaluateRow(row Row) bool {
	for _, clause := range e.selectionClauses {
		if !evaluateClause(clause, row) {
			return false
		}
	}
	return true
}

func (e *SimpleEvaluator) stripKeywords(projection string) string {
	terms := splitTopLevelCommas(projection)
	i := 0
	for i < len(terms) && e.recognizedKeywordSet[strings.TrimSpace(terms[i])] {
		i++
	}
	return strings.Join(terms[i:], ",")
}

// splitTopLevelCommas splits s on ',' that are not nested inside parens.
func splitTopLevelCommas(s string) []string {
	if s == "" {
		return nil
	}
	var terms []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				terms = append(terms, s[start:i])
				start = i + 1
			}
		}
	}
	terms = append(terms, s[start:])
	return terms
}

// parseCallTerm recognizes "name(arg,arg,...)" spanning the whole term.
func parseCallTerm(term string) (name string, args []string, ok bool) {
	open := strings.IndexByte(term, '(')
	if open < 0 || !strings.HasSuffix(term, ")") {
		return "", nil, false
	}
	name = term[:open]
	if name == "" || !isIdentifier(name) {
		return "", nil, false
	}
	inner := term[open+1 : len(term)-1]
	if inner == "" {
		return name, nil, true
	}
	return name, splitTopLevelCommas(inner), true
}

func isWholeFunctionCall(term string) bool {
	_, _, ok := parseCallTerm(term)
	return ok
}

func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return s != ""
}

// applyProjectionTerm resolves a dotted variable path with optional
// "[start:stride:stop]" slices against tree, marking Projected along the
// path and recording any Array slice constraints.
func applyProjectionTerm(tree VariableTree, term string) error {
	path, slices := splitPathAndSlices(term)
	segments := strings.Split(path, ".")

	current := tree.Root()
	current.Projected = true
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		child := current.FindChild(seg)
		if child == nil {
			return dapcode.NewCEParseError(term + ": The variable " + seg + " was not found in the dataset.")
		}
		child.Projected = true
		current = child
	}

	if len(slices) == 0 {
		return nil
	}
	if current.Type != KindArray {
		return dapcode.NewCEParseError(term + ": slicing applied to a non-Array variable")
	}
	if len(slices) != len(current.Dimensions) {
		return dapcode.NewCEParseError(term + ": the index constraint does not match its rank")
	}
	for i, s := range slices {
		c, err := parseSlice(s)
		if err != nil {
			return dapcode.NewCEParseError(term + ": " + err.Error())
		}
		current.Dimensions[i].Constraint = c
	}
	return nil
}

// splitPathAndSlices splits "a.b[0:1:2][3:]" into ("a.b", ["0:1:2", "3:"]).
func splitPathAndSlices(term string) (path string, slices []string) {
	open := strings.IndexByte(term, '[')
	if open < 0 {
		return term, nil
	}
	path = term[:open]
	rest := term[open:]
	for len(rest) > 0 && rest[0] == '[' {
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			break
		}
		slices = append(slices, rest[1:close])
		rest = rest[close+1:]
	}
	return path, slices
}

// parseSlice parses "start", "start:stop", or "start:stride:stop" (stop may
// be empty, meaning Rest: "to the end").
func parseSlice(s string) (*SliceConstraint, error) {
	parts := strings.Split(s, ":")
	parseUint := func(p string) (uint64, error) { return strconv.ParseUint(p, 10, 64) }

	switch len(parts) {
	case 1:
		v, err := parseUint(parts[0])
		if err != nil {
			return nil, err
		}
		return &SliceConstraint{Start: v, Stride: 1, Stop: v}, nil
	case 2:
		start, err := parseUint(parts[0])
		if err != nil {
			return nil, err
		}
		if parts[1] == "" {
			return &SliceConstraint{Start: start, Stride: 1, Rest: true}, nil
		}
		stop, err := parseUint(parts[1])
		if err != nil {
			return nil, err
		}
		return &SliceConstraint{Start: start, Stride: 1, Stop: stop}, nil
	case 3:
		start, err := parseUint(parts[0])
		if err != nil {
			return nil, err
		}
		stride, err := parseUint(parts[1])
		if err != nil {
			return nil, err
		}
		if parts[2] == "" {
			return &SliceConstraint{Start: start, Stride: stride, Rest: true}, nil
		}
		stop, err := parseUint(parts[2])
		if err != nil {
			return nil, err
		}
		return &SliceConstraint{Start: start, Stride: stride, Stop: stop}, nil
	default:
		return nil, strconv.ErrSyntax
	}
}

func evaluateClause(clause string, row Row) bool {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if name, value, ok := strings.Cut(clause, op); ok {
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			return compare(row[name], op, value)
		}
	}
	return true
}

func compare(actual any, op string, literal string) bool {
	af, aok := toFloat(actual)
	lf, lok := strconv.ParseFloat(literal, 64)
	if aok && lok == nil {
		switch op {
		case "==":
			return af == lf
		case "!=":
			return af != lf
		case "<=":
			return af <= lf
		case ">=":
			return af >= lf
		case "<":
			return af < lf
		case ">":
			return af > lf
		}
	}
	as := toString(actual)
	switch op {
	case "==":
		return as == literal
	case "!=":
		return as != literal
	case "<=":
		return as <= literal
	case ">=":
		return as >= literal
	case "<":
		return as < literal
	default:
		return as > literal && op == ">"
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case byte:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
