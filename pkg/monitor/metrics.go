package monitor

import (
	"maps"
	"sync"
	"time"
)

// PlanMetrics 规划指标收集器
type PlanMetrics struct {
	mu            sync.RWMutex
	planCount     int64
	planSuccess   int64
	planError     int64
	totalDuration time.Duration
	slowPlanCount int64
	activePlans   int64
	stageErrors   map[string]int64
	tableAccess   map[string]int64
	startTime     time.Time
}

// NewPlanMetrics 创建规划指标收集器
func NewPlanMetrics() *PlanMetrics {
	return &PlanMetrics{
		stageErrors: make(map[string]int64),
		tableAccess: make(map[string]int64),
		startTime:   time.Now(),
	}
}

// RecordPlan 记录一次规划，stage 为失败的阶段，成功时为空
func (m *PlanMetrics) RecordPlan(duration time.Duration, stage string, tableName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.planCount++
	m.totalDuration += duration

	if stage == "" {
		m.planSuccess++
	} else {
		m.planError++
		m.stageErrors[stage]++
	}

	if tableName != "" {
		m.tableAccess[tableName]++
	}
}

// RecordSlowPlan 记录慢规划
func (m *PlanMetrics) RecordSlowPlan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slowPlanCount++
}

// StartPlan 开始规划
func (m *PlanMetrics) StartPlan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activePlans++
}

// EndPlan 结束规划
func (m *PlanMetrics) EndPlan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activePlans > 0 {
		m.activePlans--
	}
}

// Reset 重置所有指标
func (m *PlanMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.planCount = 0
	m.planSuccess = 0
	m.planError = 0
	m.totalDuration = 0
	m.slowPlanCount = 0
	m.activePlans = 0
	m.stageErrors = make(map[string]int64)
	m.tableAccess = make(map[string]int64)
	m.startTime = time.Now()
}

// PlanMetricsSnapshot 规划指标快照
type PlanMetricsSnapshot struct {
	PlanCount     int64
	PlanSuccess   int64
	PlanError     int64
	SuccessRate   float64
	AvgDuration   time.Duration
	TotalDuration time.Duration
	SlowPlanCount int64
	ActivePlans   int64
	// StageErrors 按失败阶段统计
	StageErrors map[string]int64
	TableAccess map[string]int64
	Uptime      time.Duration
}

// GetSnapshot 获取指标快照
func (m *PlanMetrics) GetSnapshot() *PlanMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var successRate float64
	var avgDuration time.Duration
	if m.planCount > 0 {
		successRate = float64(m.planSuccess) / float64(m.planCount) * 100
		avgDuration = m.totalDuration / time.Duration(m.planCount)
	}

	return &PlanMetricsSnapshot{
		PlanCount:     m.planCount,
		PlanSuccess:   m.planSuccess,
		PlanError:     m.planError,
		SuccessRate:   successRate,
		AvgDuration:   avgDuration,
		TotalDuration: m.totalDuration,
		SlowPlanCount: m.slowPlanCount,
		ActivePlans:   m.activePlans,
		StageErrors:   maps.Clone(m.stageErrors),
		TableAccess:   maps.Clone(m.tableAccess),
		Uptime:        time.Since(m.startTime),
	}
}
