package monitor

import (
	"sync"
	"time"
)

// SlowPlanEntry 慢规划日志项
type SlowPlanEntry struct {
	ID        int64
	QueryID   string
	SQL       string
	Duration  time.Duration
	Timestamp time.Time
	TableName string
	// Stage 失败的阶段，成功时为空
	Stage       string
	Error       string
	ExplainPlan string
}

// SlowPlanLog 慢规划日志，超过 maxEntries 时丢弃最旧的记录
type SlowPlanLog struct {
	mu         sync.RWMutex
	entries    []*SlowPlanEntry
	byID       map[int64]*SlowPlanEntry
	threshold  time.Duration
	maxEntries int
	nextID     int64
}

// NewSlowPlanLog 创建慢规划日志
func NewSlowPlanLog(threshold time.Duration, maxEntries int) *SlowPlanLog {
	return &SlowPlanLog{
		entries:    make([]*SlowPlanEntry, 0, maxEntries),
		byID:       make(map[int64]*SlowPlanEntry),
		threshold:  threshold,
		maxEntries: maxEntries,
		nextID:     1,
	}
}

// IsSlow 检查是否为慢规划
func (s *SlowPlanLog) IsSlow(duration time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return duration >= s.threshold
}

// Record 记录慢规划，未达到阈值时返回 0
func (s *SlowPlanLog) Record(entry SlowPlanEntry) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Duration < s.threshold || s.maxEntries == 0 {
		return 0
	}

	e := entry
	e.ID = s.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.nextID++
	s.byID[e.ID] = &e
	s.entries = append(s.entries, &e)

	if len(s.entries) > s.maxEntries {
		oldest := s.entries[0]
		delete(s.byID, oldest.ID)
		s.entries = s.entries[1:]
	}
	return e.ID
}

// Get 获取慢规划记录
func (s *SlowPlanLog) Get(id int64) (*SlowPlanEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	return e, ok
}

// All 获取所有慢规划，按记录顺序
func (s *SlowPlanLog) All() []*SlowPlanEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*SlowPlanEntry, len(s.entries))
	copy(result, s.entries)
	return result
}

// ByTable 获取指定表的慢规划
func (s *SlowPlanLog) ByTable(tableName string) []*SlowPlanEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*SlowPlanEntry{}
	for _, e := range s.entries {
		if e.TableName == tableName {
			result = append(result, e)
		}
	}
	return result
}

// Count 获取慢规划总数
func (s *SlowPlanLog) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear 清空所有记录
func (s *SlowPlanLog) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]*SlowPlanEntry, 0, s.maxEntries)
	s.byID = make(map[int64]*SlowPlanEntry)
	s.nextID = 1
}

// SetThreshold 设置慢规划阈值
func (s *SlowPlanLog) SetThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
}

// Threshold 获取慢规划阈值
func (s *SlowPlanLog) Threshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SlowPlanAnalysis 慢规划分析结果
type SlowPlanAnalysis struct {
	TotalPlans    int
	AvgDuration   time.Duration
	MaxDuration   time.Duration
	MinDuration   time.Duration
	TotalDuration time.Duration
	ErrorCount    int
	// TablePlans 每张表的慢规划数
	TablePlans map[string]int
}

// Analyze 汇总当前保留的慢规划
func (s *SlowPlanLog) Analyze() *SlowPlanAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analysis := &SlowPlanAnalysis{TablePlans: make(map[string]int)}
	if len(s.entries) == 0 {
		return analysis
	}

	analysis.TotalPlans = len(s.entries)
	analysis.MaxDuration = s.entries[0].Duration
	analysis.MinDuration = s.entries[0].Duration
	for _, e := range s.entries {
		analysis.TotalDuration += e.Duration
		analysis.MaxDuration = max(analysis.MaxDuration, e.Duration)
		analysis.MinDuration = min(analysis.MinDuration, e.Duration)
		if e.Error != "" {
			analysis.ErrorCount++
		}
		if e.TableName != "" {
			analysis.TablePlans[e.TableName]++
		}
	}
	analysis.AvgDuration = analysis.TotalDuration / time.Duration(len(s.entries))
	return analysis
}

// PlanTrace 一次规划的监控上下文
type PlanTrace struct {
	metrics   *PlanMetrics
	slowLog   *SlowPlanLog
	queryID   string
	sql       string
	startTime time.Time
}

// StartTrace 开始监控一次规划，metrics 和 slowLog 都可以为 nil
func StartTrace(metrics *PlanMetrics, slowLog *SlowPlanLog, queryID, sql string) *PlanTrace {
	if metrics != nil {
		metrics.StartPlan()
	}
	return &PlanTrace{
		metrics:   metrics,
		slowLog:   slowLog,
		queryID:   queryID,
		sql:       sql,
		startTime: time.Now(),
	}
}

// End 结束监控。explain 只在记录慢规划时才会被调用
func (t *PlanTrace) End(tableName, stage string, err error, explain func() string) time.Duration {
	duration := time.Since(t.startTime)
	if t.metrics != nil {
		t.metrics.RecordPlan(duration, stage, tableName)
		t.metrics.EndPlan()
	}
	if t.slowLog == nil || !t.slowLog.IsSlow(duration) {
		return duration
	}

	entry := SlowPlanEntry{
		QueryID:   t.queryID,
		SQL:       t.sql,
		Duration:  duration,
		TableName: tableName,
		Stage:     stage,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if explain != nil {
		entry.ExplainPlan = explain()
	}
	if t.slowLog.Record(entry) != 0 && t.metrics != nil {
		t.metrics.RecordSlowPlan()
	}
	return duration
}
