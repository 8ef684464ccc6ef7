package plan

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Explain renders the plan as an indented tree, one operator per line followed
// by its detail lines:
//
//	- Output[x, r] => [x:bigint, r:bigint]
//	    - Window[partition by (a)] => [x:bigint, a:bigint, r:bigint]
//	            r := rank() RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW
//	        - TableScan[t] => [x:bigint, a:bigint]
func Explain(root Node) string {
	var sb strings.Builder
	explainNode(&sb, root, 0)
	return sb.String()
}

func explainNode(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("    ", depth)
	sb.WriteString(indent)
	sb.WriteString("- ")
	sb.WriteString(label(n))
	sb.WriteString(" => [")
	sb.WriteString(joinTyped(n.OutputVariables()))
	sb.WriteString("]\n")
	for _, d := range details(n) {
		sb.WriteString(indent)
		sb.WriteString("        ")
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	for _, s := range n.Sources() {
		explainNode(sb, s, depth+1)
	}
}

func label(n Node) string {
	switch n := n.(type) {
	case *TableScanNode:
		return "TableScan[" + n.table + "]"
	case *ValuesNode:
		return "Values"
	case *ProjectNode:
		return "Project"
	case *WindowNode:
		return "Window[" + n.specification.String() + "]"
	case *OutputNode:
		return "Output[" + strings.Join(n.columnNames, ", ") + "]"
	default:
		panic(errors.AssertionFailedf("unhandled plan node %T", n))
	}
}

func details(n Node) []string {
	switch n := n.(type) {
	case *ValuesNode:
		out := make([]string, len(n.rows))
		for i, row := range n.rows {
			vals := make([]string, len(row))
			for j, v := range row {
				vals[j] = v.String()
			}
			out[i] = "(" + strings.Join(vals, ", ") + ")"
		}
		return out
	case *ProjectNode:
		var out []string
		for _, a := range n.assignments {
			if v, ok := a.Expression.(Variable); ok && v == a.Output {
				continue
			}
			out = append(out, a.Output.Name+" := "+a.Expression.String())
		}
		return out
	case *WindowNode:
		out := make([]string, n.functions.Len())
		for i, e := range n.functions.entries {
			out[i] = e.Output.Name + " := " + e.Function.String()
		}
		return out
	default:
		return nil
	}
}
