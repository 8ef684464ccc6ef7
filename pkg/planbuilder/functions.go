package planbuilder

import (
	"github.com/kasuganosora/planopt/pkg/plan"
)

// windowFunctionInfo 窗口函数的参数个数和返回类型
type windowFunctionInfo struct {
	minArgs int
	maxArgs int
	// returnType 为空时返回第一个参数的类型
	returnType string
}

var windowFunctions = map[string]windowFunctionInfo{
	"row_number":   {0, 0, "bigint"},
	"rank":         {0, 0, "bigint"},
	"dense_rank":   {0, 0, "bigint"},
	"percent_rank": {0, 0, "double"},
	"cume_dist":    {0, 0, "double"},
	"ntile":        {1, 1, "bigint"},
	"lag":          {1, 3, ""},
	"lead":         {1, 3, ""},
	"first_value":  {1, 1, ""},
	"last_value":   {1, 1, ""},
	"nth_value":    {2, 2, ""},
	"avg":          {1, 1, "double"},
	"count":        {1, 1, "bigint"},
	"sum":          {1, 1, ""},
	"min":          {1, 1, ""},
	"max":          {1, 1, ""},
}

func resolveReturnType(info windowFunctionInfo, args []plan.RowExpression) string {
	if info.returnType != "" {
		return info.returnType
	}
	return expressionType(args[0])
}

func expressionType(expr plan.RowExpression) string {
	switch e := expr.(type) {
	case plan.Variable:
		return e.Type
	case plan.Constant:
		return e.Type
	case plan.Call:
		return e.ReturnType
	default:
		return "unknown"
	}
}
