package dapmodel

import "strings"

// SplitCE partitions a raw constraint expression into a function sub-CE
// (the BTP function-call terms) and a residual CE (everything else: plain
// projections, slicing, and the entire selection suffix), per the
// left-to-right paren-scanning algorithm.
//
// Either returned string may be empty. Re-joining functionCE's terms and
// residual's terms (each split on ',') recovers every top-level term of ce
// exactly once.
func SplitCE(ce string, evaluator CEEvaluator) (functionCE string, residual string) {
	var funcTerms []string
	var residualBuilder strings.Builder

	pos := 0
	for pos < len(ce) {
		open := strings.IndexByte(ce[pos:], '(')
		if open < 0 {
			residualBuilder.WriteString(ce[pos:])
			break
		}
		open += pos

		closeIdx := matchingParen(ce, open)
		if closeIdx < 0 {
			// Unbalanced: nothing more to split, keep the remainder as-is.
			residualBuilder.WriteString(ce[pos:])
			break
		}

		name := precedingIdentifier(ce, open)
		nameStart := open - len(name)

		found, kind := false, FunctionProjection
		if evaluator != nil && name != "" {
			found, kind = evaluator.FindFunction(name)
		}

		end := closeIdx + 1
		consumeEnd := end
		if consumeEnd < len(ce) && ce[consumeEnd] == ',' {
			consumeEnd++
		}

		if found && kind == FunctionBTP {
			// Everything between pos and nameStart (the term's own leading
			// separator included) belongs to the residual as-is; the call
			// itself is pulled into functionCE.
			residualBuilder.WriteString(ce[pos:nameStart])
			funcTerms = append(funcTerms, ce[nameStart:end])
			pos = consumeEnd
			continue
		}

		// Not a BTP call: copy through the ')' verbatim and keep scanning
		// past it, so nested/sibling parens in the same term are not
		// revisited.
		residualBuilder.WriteString(ce[pos:end])
		pos = end
	}

	return strings.Join(funcTerms, ","), cleanSeparators(residualBuilder.String())
}

// cleanSeparators collapses a leading/doubled ',' left behind when a
// function term was excised from the middle of the residual.
func cleanSeparators(s string) string {
	s = strings.TrimPrefix(s, ",")
	s = strings.ReplaceAll(s, ",,", ",")
	return strings.TrimSuffix(s, ",")
}

// matchingParen returns the index of the ')' matching the '(' at openIdx,
// accounting for nested parens, or -1 if unbalanced.
func matchingParen(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// precedingIdentifier returns the identifier run immediately before index
// idx in s (the function name preceding its '(').
func precedingIdentifier(s string, idx int) string {
	end := idx
	start := end
	for start > 0 && isIdentByte(s[start-1]) {
		start--
	}
	return s[start:end]
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
