package monitor

import (
	"slices"
	"sync"
	"time"
)

// RuleStats 优化规则统计。nil 的 *RuleStats 可以直接调用，不做任何记录
type RuleStats struct {
	mu     sync.RWMutex
	rules  map[string]*ruleCounter
	passes int64
	failed int64
	total  time.Duration
}

type ruleCounter struct {
	invocations int64
	fires       int64
	failures    int64
	duration    time.Duration
}

// NewRuleStats 创建规则统计
func NewRuleStats() *RuleStats {
	return &RuleStats{rules: make(map[string]*ruleCounter)}
}

func (s *RuleStats) counter(rule string) *ruleCounter {
	c, ok := s.rules[rule]
	if !ok {
		c = &ruleCounter{}
		s.rules[rule] = c
	}
	return c
}

// RecordInvocation 记录一次规则调用，fired 表示规则产生了改写
func (s *RuleStats) RecordInvocation(rule string, duration time.Duration, fired bool, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counter(rule)
	c.invocations++
	c.duration += duration
	if fired {
		c.fires++
	}
	if err != nil {
		c.failures++
	}
}

// RecordPass 记录一次完整的优化过程
func (s *RuleStats) RecordPass(duration time.Duration, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.passes++
	s.total += duration
	if err != nil {
		s.failed++
	}
}

// RuleMetrics 单条规则的指标快照
type RuleMetrics struct {
	Rule        string
	Invocations int64
	Fires       int64
	Failures    int64
	Duration    time.Duration
}

// RuleStatsSnapshot 规则统计快照
type RuleStatsSnapshot struct {
	Passes       int64
	FailedPasses int64
	PassDuration time.Duration
	// Rules 按规则名排序
	Rules []RuleMetrics
}

// Rule 返回指定规则的指标
func (s *RuleStatsSnapshot) Rule(name string) (RuleMetrics, bool) {
	for _, r := range s.Rules {
		if r.Rule == name {
			return r, true
		}
	}
	return RuleMetrics{}, false
}

// GetSnapshot 获取统计快照
func (s *RuleStats) GetSnapshot() *RuleStatsSnapshot {
	if s == nil {
		return &RuleStatsSnapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &RuleStatsSnapshot{
		Passes:       s.passes,
		FailedPasses: s.failed,
		PassDuration: s.total,
		Rules:        make([]RuleMetrics, 0, len(s.rules)),
	}
	for name, c := range s.rules {
		snap.Rules = append(snap.Rules, RuleMetrics{
			Rule:        name,
			Invocations: c.invocations,
			Fires:       c.fires,
			Failures:    c.failures,
			Duration:    c.duration,
		})
	}
	slices.SortFunc(snap.Rules, func(a, b RuleMetrics) int {
		if a.Rule < b.Rule {
			return -1
		}
		if a.Rule > b.Rule {
			return 1
		}
		return 0
	})
	return snap
}

// Reset 重置所有统计
func (s *RuleStats) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make(map[string]*ruleCounter)
	s.passes = 0
	s.failed = 0
	s.total = 0
}
