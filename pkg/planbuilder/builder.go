// Package planbuilder turns SELECT statements with window functions into
// logical plans. Statements are parsed with the TiDB parser; only a single
// table source and window function select items are supported.
package planbuilder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

var (
	// ErrUnsupported marks SQL the builder does not plan.
	ErrUnsupported = errors.New("unsupported SQL")
	// ErrColumnNotFound marks a reference to an unknown column.
	ErrColumnNotFound = errors.New("column not found")
)

func unsupportedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupported)
}

// Builder builds the plan for one query. It owns the id and variable
// allocators of that plan and is not safe for concurrent use.
type Builder struct {
	catalog Catalog
	parser  *parser.Parser
	ids     *plan.IDAllocator
	vars    *plan.VariableAllocator
}

// NewBuilder creates a builder allocating ids and variables from ids and vars.
func NewBuilder(catalog Catalog, ids *plan.IDAllocator, vars *plan.VariableAllocator) *Builder {
	return &Builder{
		catalog: catalog,
		parser:  parser.New(),
		ids:     ids,
		vars:    vars,
	}
}

// Build parses sql and returns its logical plan.
func (b *Builder) Build(sql string) (*plan.OutputNode, error) {
	stmt, err := b.parser.ParseOneStmt(sql, "", "")
	if err != nil {
		return nil, errors.Wrap(err, "parse SQL failed")
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		return nil, unsupportedf("only SELECT statements can be planned, got %T", stmt)
	}
	return b.buildSelect(sel)
}

// SplitStatements splits a script into the text of its statements, without
// the trailing semicolons.
func SplitStatements(sql string) ([]string, error) {
	stmts, _, err := parser.New().Parse(sql, "", "")
	if err != nil {
		return nil, errors.Wrap(err, "parse SQL failed")
	}
	out := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, strings.TrimSuffix(strings.TrimSpace(stmt.Text()), ";"))
	}
	return out, nil
}

func checkClauses(sel *ast.SelectStmt) error {
	switch {
	case sel.With != nil:
		return unsupportedf("WITH clause is not supported")
	case sel.Distinct:
		return unsupportedf("SELECT DISTINCT is not supported")
	case sel.Where != nil:
		return unsupportedf("WHERE clause is not supported")
	case sel.GroupBy != nil:
		return unsupportedf("GROUP BY clause is not supported")
	case sel.Having != nil:
		return unsupportedf("HAVING clause is not supported")
	case sel.OrderBy != nil:
		return unsupportedf("ORDER BY clause is not supported")
	case sel.Limit != nil:
		return unsupportedf("LIMIT clause is not supported")
	}
	return nil
}

// scope 单表的列解析范围
type scope struct {
	qualifier string
	columns   map[string]plan.Variable
	outputs   []plan.Variable
	names     []string
}

func (s *scope) resolve(col *ast.ColumnName) (plan.Variable, error) {
	if col.Table.O != "" && foldName(col.Table.O) != s.qualifier {
		return plan.Variable{}, errors.Wrapf(ErrColumnNotFound, "%s.%s", col.Table.O, col.Name.O)
	}
	v, ok := s.columns[foldName(col.Name.O)]
	if !ok {
		return plan.Variable{}, errors.Wrapf(ErrColumnNotFound, "%s", col.Name.O)
	}
	return v, nil
}

// windowCall 一个窗口函数及其 specification，每个对应一个 Window 节点
type windowCall struct {
	spec       plan.Specification
	assignment plan.WindowAssignment
}

type selectState struct {
	b           *Builder
	scope       *scope
	named       map[string]*ast.WindowSpec
	projections []plan.Assignment
	windows     []windowCall
}

func (b *Builder) buildSelect(sel *ast.SelectStmt) (*plan.OutputNode, error) {
	if err := checkClauses(sel); err != nil {
		return nil, err
	}
	sc, scan, err := b.buildTableScan(sel.From)
	if err != nil {
		return nil, err
	}

	st := &selectState{b: b, scope: sc, named: make(map[string]*ast.WindowSpec, len(sel.WindowSpecs))}
	for i := range sel.WindowSpecs {
		spec := &sel.WindowSpecs[i]
		if _, dup := st.named[spec.Name.L]; dup {
			return nil, errors.Newf("window %s is defined more than once", spec.Name.O)
		}
		st.named[spec.Name.L] = spec
	}

	var (
		outputs []plan.Variable
		names   []string
	)
	for _, field := range sel.Fields.Fields {
		switch {
		case field.WildCard != nil:
			if q := field.WildCard.Table.O; q != "" && foldName(q) != sc.qualifier {
				return nil, errors.Newf("unknown table %s in select list", q)
			}
			outputs = append(outputs, sc.outputs...)
			names = append(names, sc.names...)
		default:
			v, name, err := st.selectItem(field)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, v)
			names = append(names, name)
		}
	}

	var source plan.Node = scan
	if len(st.projections) > 0 {
		assignments := append(plan.IdentityAssignments(scan.OutputVariables()...), st.projections...)
		source = plan.NewProjectNode(b.ids.Next(), scan, assignments)
	}
	for _, w := range st.windows {
		source = plan.NewWindowNode(b.ids.Next(), source, w.spec, plan.MustWindowFunctions(w.assignment))
	}
	return plan.NewOutputNode(b.ids.Next(), source, names, outputs), nil
}

func (b *Builder) buildTableScan(from *ast.TableRefsClause) (*scope, *plan.TableScanNode, error) {
	if from == nil || from.TableRefs == nil {
		return nil, nil, unsupportedf("SELECT without FROM is not supported")
	}
	join := from.TableRefs
	if join.Right != nil {
		return nil, nil, unsupportedf("joins are not supported")
	}
	ts, ok := join.Left.(*ast.TableSource)
	if !ok {
		return nil, nil, unsupportedf("FROM %T is not supported", join.Left)
	}
	tn, ok := ts.Source.(*ast.TableName)
	if !ok {
		return nil, nil, unsupportedf("derived tables are not supported")
	}
	table, err := b.catalog.Table(tn.Name.O)
	if err != nil {
		return nil, nil, err
	}

	sc := &scope{
		qualifier: foldName(tn.Name.O),
		columns:   make(map[string]plan.Variable, len(table.Columns)),
	}
	if ts.AsName.O != "" {
		sc.qualifier = foldName(ts.AsName.O)
	}
	for _, col := range table.Columns {
		key := foldName(col.Name)
		v := b.vars.NewVariable(key, col.Type)
		sc.columns[key] = v
		sc.outputs = append(sc.outputs, v)
		sc.names = append(sc.names, col.Name)
	}
	return sc, plan.NewTableScanNode(b.ids.Next(), table.Name, sc.outputs), nil
}

func (st *selectState) selectItem(field *ast.SelectField) (plan.Variable, string, error) {
	switch expr := field.Expr.(type) {
	case *ast.ColumnNameExpr:
		v, err := st.scope.resolve(expr.Name)
		if err != nil {
			return plan.Variable{}, "", err
		}
		name := field.AsName.O
		if name == "" {
			name = expr.Name.Name.O
		}
		return v, name, nil
	case *ast.WindowFuncExpr:
		v, err := st.windowFunction(expr, field.AsName.O)
		if err != nil {
			return plan.Variable{}, "", err
		}
		name := field.AsName.O
		if name == "" {
			name = v.Name
		}
		return v, name, nil
	default:
		return plan.Variable{}, "", unsupportedf("select item %T is not supported", field.Expr)
	}
}

func (st *selectState) windowFunction(expr *ast.WindowFuncExpr, alias string) (plan.Variable, error) {
	name := strings.ToLower(expr.Name)
	info, ok := windowFunctions[name]
	if !ok {
		return plan.Variable{}, unsupportedf("window function %s is not supported", name)
	}
	if expr.Distinct {
		return plan.Variable{}, unsupportedf("DISTINCT in window function %s is not supported", name)
	}
	if expr.FromLast {
		return plan.Variable{}, unsupportedf("FROM LAST is not supported")
	}
	if n := len(expr.Args); n < info.minArgs || n > info.maxArgs {
		return plan.Variable{}, errors.Newf("window function %s takes %d to %d arguments, got %d",
			name, info.minArgs, info.maxArgs, n)
	}

	args := make([]plan.RowExpression, len(expr.Args))
	for i, arg := range expr.Args {
		e, err := st.scalar(arg)
		if err != nil {
			return plan.Variable{}, err
		}
		args[i] = e
	}

	resolved, err := st.resolveWindow(&expr.Spec, make(map[string]bool))
	if err != nil {
		return plan.Variable{}, err
	}
	spec, err := st.specification(resolved)
	if err != nil {
		return plan.Variable{}, err
	}
	frame, err := st.frame(resolved.frame, spec)
	if err != nil {
		return plan.Variable{}, err
	}

	hint := name
	if alias != "" {
		hint = foldName(alias)
	}
	returnType := resolveReturnType(info, args)
	out := st.b.vars.NewVariable(hint, returnType)
	st.windows = append(st.windows, windowCall{
		spec: spec,
		assignment: plan.WindowAssignment{
			Output: out,
			Function: plan.WindowFunction{
				Call:        plan.NewCall(name, returnType, args...),
				Frame:       frame,
				IgnoreNulls: expr.IgnoreNull,
			},
		},
	})
	return out, nil
}

func (st *selectState) scalar(expr ast.ExprNode) (plan.RowExpression, error) {
	switch e := expr.(type) {
	case *ast.ColumnNameExpr:
		v, err := st.scope.resolve(e.Name)
		if err != nil {
			return nil, err
		}
		return v, nil
	case *ast.ParenthesesExpr:
		return st.scalar(e.Expr)
	case ast.ValueExpr:
		return constant(e), nil
	default:
		return nil, unsupportedf("expression %T is not supported", expr)
	}
}

func constant(v ast.ValueExpr) plan.Constant {
	switch val := v.GetValue().(type) {
	case nil:
		return plan.Constant{Literal: "null", Type: "unknown"}
	case int64:
		return plan.Constant{Literal: strconv.FormatInt(val, 10), Type: "bigint"}
	case uint64:
		return plan.Constant{Literal: strconv.FormatUint(val, 10), Type: "bigint"}
	case float64:
		return plan.Constant{Literal: strconv.FormatFloat(val, 'g', -1, 64), Type: "double"}
	case string:
		return plan.Constant{Literal: "'" + val + "'", Type: "varchar"}
	default:
		return plan.Constant{Literal: fmt.Sprint(val), Type: "decimal"}
	}
}
