package optimizer

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// 规则编号
const (
	RuleSwapAdjacentWindows uint = iota
	RuleMergeAdjacentWindows

	ruleCount
)

// RuleSet 规则集合，按顺序尝试
type RuleSet []Rule

// DefaultRuleSet 返回默认规则集
func DefaultRuleSet() RuleSet {
	return RuleSet{
		NewSwapAdjacentWindowsRule(),
		NewMergeAdjacentWindowsRule(),
	}
}

// AllRulesMask 返回启用全部规则的掩码
func AllRulesMask() *bitset.BitSet {
	mask := bitset.New(ruleCount)
	for id := uint(0); id < ruleCount; id++ {
		mask.Set(id)
	}
	return mask
}

// MaskFromDisabled 根据被禁用的规则名生成掩码，未知规则名返回错误
func (rs RuleSet) MaskFromDisabled(disabled []string) (*bitset.BitSet, error) {
	mask := AllRulesMask()
	for _, name := range disabled {
		r := rs.Lookup(name)
		if r == nil {
			return nil, errors.Newf("unknown optimizer rule %q", name)
		}
		mask.Clear(r.ID())
	}
	return mask, nil
}

// Filter 只保留掩码中启用的规则
func (rs RuleSet) Filter(mask *bitset.BitSet) RuleSet {
	res := make(RuleSet, 0, len(rs))
	for _, r := range rs {
		if mask.Test(r.ID()) {
			res = append(res, r)
		}
	}
	return res
}

// Lookup 按名称查找规则
func (rs RuleSet) Lookup(name string) Rule {
	for _, r := range rs {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

// byOperand 按模式根节点分组，OperandAny 的规则对所有节点都适用
func (rs RuleSet) byOperand() map[Operand]RuleSet {
	out := make(map[Operand]RuleSet)
	for _, r := range rs {
		op := r.Pattern().Operand()
		out[op] = append(out[op], r)
	}
	return out
}
