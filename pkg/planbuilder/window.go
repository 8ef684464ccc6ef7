package planbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/pingcap/tidb/pkg/parser/ast"
)

// resolvedWindow 展开命名窗口引用后的窗口定义
type resolvedWindow struct {
	partitionBy []*ast.ByItem
	orderBy     []*ast.ByItem
	frame       *ast.FrameClause
}

// resolveWindow 展开 OVER w 和 OVER (w ...) 引用。引用的窗口不能再被覆盖
// PARTITION BY，已有 ORDER BY 时不能再指定 ORDER BY，带 frame 的窗口不能被引用。
func (st *selectState) resolveWindow(spec *ast.WindowSpec, visiting map[string]bool) (resolvedWindow, error) {
	if spec.OnlyAlias {
		return st.namedWindow(spec.Name, visiting)
	}

	var r resolvedWindow
	if spec.Ref.L != "" {
		base, err := st.namedWindow(spec.Ref, visiting)
		if err != nil {
			return resolvedWindow{}, err
		}
		if spec.PartitionBy != nil {
			return resolvedWindow{}, errors.Newf("window cannot override PARTITION BY of window %s", spec.Ref.O)
		}
		if spec.OrderBy != nil && base.orderBy != nil {
			return resolvedWindow{}, errors.Newf("window cannot override ORDER BY of window %s", spec.Ref.O)
		}
		if base.frame != nil {
			return resolvedWindow{}, errors.Newf("window %s has a frame clause and cannot be referenced", spec.Ref.O)
		}
		r = base
	}
	if spec.PartitionBy != nil {
		r.partitionBy = spec.PartitionBy.Items
	}
	if spec.OrderBy != nil {
		r.orderBy = spec.OrderBy.Items
	}
	if spec.Frame != nil {
		r.frame = spec.Frame
	}
	return r, nil
}

func (st *selectState) namedWindow(name ast.CIStr, visiting map[string]bool) (resolvedWindow, error) {
	def, ok := st.named[name.L]
	if !ok {
		return resolvedWindow{}, errors.Newf("window %s is not defined", name.O)
	}
	if visiting[name.L] {
		return resolvedWindow{}, errors.Newf("window %s references itself", name.O)
	}
	visiting[name.L] = true
	defer delete(visiting, name.L)
	return st.resolveWindow(def, visiting)
}

// specification 重复的分区列和排序列只保留第一次出现
func (st *selectState) specification(r resolvedWindow) (plan.Specification, error) {
	var partition []plan.Variable
	seen := make(plan.VariableSet)
	for _, item := range r.partitionBy {
		v, err := st.column(item.Expr, "PARTITION BY")
		if err != nil {
			return plan.Specification{}, err
		}
		if !seen.Contains(v) {
			seen.Add(v)
			partition = append(partition, v)
		}
	}

	var orderings []plan.Ordering
	seen = make(plan.VariableSet)
	for _, item := range r.orderBy {
		v, err := st.column(item.Expr, "ORDER BY")
		if err != nil {
			return plan.Specification{}, err
		}
		if seen.Contains(v) {
			continue
		}
		seen.Add(v)
		order := plan.AscNullsLast
		if item.Desc {
			order = plan.DescNullsFirst
		}
		orderings = append(orderings, plan.Ordering{Variable: v, SortOrder: order})
	}

	var scheme *plan.OrderingScheme
	if len(orderings) > 0 {
		scheme = plan.NewOrderingScheme(orderings...)
	}
	return plan.NewSpecification(partition, scheme), nil
}

func (st *selectState) column(expr ast.ExprNode, clause string) (plan.Variable, error) {
	if p, ok := expr.(*ast.ParenthesesExpr); ok {
		return st.column(p.Expr, clause)
	}
	col, ok := expr.(*ast.ColumnNameExpr)
	if !ok {
		return plan.Variable{}, unsupportedf("%s expression %T is not supported, only columns", clause, expr)
	}
	return st.scope.resolve(col.Name)
}

// frame 构造窗口 frame。字面量偏移量投影成新变量；RANGE 偏移量还需要
// 按排序键方向计算出用于比较的排序键。
func (st *selectState) frame(clause *ast.FrameClause, spec plan.Specification) (plan.Frame, error) {
	if clause == nil {
		return plan.DefaultFrame(), nil
	}

	var f plan.Frame
	switch clause.Type {
	case ast.Rows:
		f.Type = plan.FrameRows
	case ast.Ranges:
		f.Type = plan.FrameRange
	default:
		return plan.Frame{}, unsupportedf("GROUPS frames are not supported")
	}

	var err error
	if f.StartType, err = boundType(clause.Extent.Start); err != nil {
		return plan.Frame{}, err
	}
	if f.EndType, err = boundType(clause.Extent.End); err != nil {
		return plan.Frame{}, err
	}
	if err := validateBounds(f.StartType, f.EndType); err != nil {
		return plan.Frame{}, err
	}

	ordering := spec.OrderingScheme().OrderBy()
	if f.Type == plan.FrameRange && (f.StartType.HasValue() || f.EndType.HasValue()) && len(ordering) != 1 {
		return plan.Frame{}, errors.New("window frame of type RANGE PRECEDING or FOLLOWING requires a single sort item in ORDER BY")
	}

	if f.StartType.HasValue() {
		value, literal, err := st.frameOffset(clause.Extent.Start, "frame_start")
		if err != nil {
			return plan.Frame{}, err
		}
		f.StartValue = &value
		if f.Type == plan.FrameRange {
			coerced := st.coerceSortKey(ordering[0], f.StartType, literal, "_coerced_for_frame_start")
			f.SortKeyCoercedForFrameStart = &coerced
		}
	}
	if f.EndType.HasValue() {
		value, literal, err := st.frameOffset(clause.Extent.End, "frame_end")
		if err != nil {
			return plan.Frame{}, err
		}
		f.EndValue = &value
		if f.Type == plan.FrameRange {
			coerced := st.coerceSortKey(ordering[0], f.EndType, literal, "_coerced_for_frame_end")
			f.SortKeyCoercedForFrameEnd = &coerced
		}
	}
	return f, nil
}

func boundType(b ast.FrameBound) (plan.BoundType, error) {
	switch b.Type {
	case ast.CurrentRow:
		return plan.CurrentRow, nil
	case ast.Preceding:
		if b.UnBounded {
			return plan.UnboundedPreceding, nil
		}
		return plan.Preceding, nil
	case ast.Following:
		if b.UnBounded {
			return plan.UnboundedFollowing, nil
		}
		return plan.Following, nil
	default:
		return 0, errors.AssertionFailedf("unknown frame bound type %d", b.Type)
	}
}

func validateBounds(start, end plan.BoundType) error {
	switch {
	case start == plan.UnboundedFollowing:
		return errors.New("window frame start cannot be UNBOUNDED FOLLOWING")
	case end == plan.UnboundedPreceding:
		return errors.New("window frame end cannot be UNBOUNDED PRECEDING")
	case start == plan.CurrentRow && end == plan.Preceding:
		return errors.New("window frame starting from CURRENT ROW cannot end with PRECEDING")
	case start == plan.Following && (end == plan.Preceding || end == plan.CurrentRow):
		return errors.Newf("window frame starting from FOLLOWING cannot end with %s", end)
	}
	return nil
}

// frameOffset 把偏移量字面量投影成变量
func (st *selectState) frameOffset(b ast.FrameBound, hint string) (plan.Variable, plan.Constant, error) {
	if b.Unit != ast.TimeUnitInvalid {
		return plan.Variable{}, plan.Constant{}, unsupportedf("INTERVAL frame offsets are not supported")
	}
	value, ok := b.Expr.(ast.ValueExpr)
	if !ok {
		return plan.Variable{}, plan.Constant{}, unsupportedf("frame offset %T is not supported", b.Expr)
	}
	literal := constant(value)
	switch literal.Type {
	case "bigint", "double", "decimal":
	default:
		return plan.Variable{}, plan.Constant{}, errors.Newf("frame offset must be numeric, got %s", literal.Literal)
	}
	v := st.b.vars.NewVariable(hint, literal.Type)
	st.projections = append(st.projections, plan.Assignment{Output: v, Expression: literal})
	return v, literal, nil
}

// coerceSortKey 计算与 RANGE 偏移量比较的排序键：升序 PRECEDING 为 key - offset，
// 升序 FOLLOWING 为 key + offset，降序相反。
func (st *selectState) coerceSortKey(key plan.Ordering, bound plan.BoundType, offset plan.Constant, suffix string) plan.Variable {
	fn := "add"
	if (bound == plan.Preceding) == key.SortOrder.IsAscending() {
		fn = "subtract"
	}
	v := st.b.vars.NewVariable(key.Variable.Name+suffix, key.Variable.Type)
	st.projections = append(st.projections, plan.Assignment{
		Output:     v,
		Expression: plan.NewCall(fn, key.Variable.Type, key.Variable, offset),
	})
	return v
}
