package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector 把规则统计和规划指标导出为 prometheus 指标。每次抓取时读取快照，
// 所以不需要在记录路径上维护 prometheus 计数器。
type Collector struct {
	rules   *RuleStats
	metrics *PlanMetrics

	ruleInvocations *prometheus.Desc
	ruleFires       *prometheus.Desc
	ruleFailures    *prometheus.Desc
	ruleSeconds     *prometheus.Desc
	passes          *prometheus.Desc
	failedPasses    *prometheus.Desc
	plans           *prometheus.Desc
	planErrors      *prometheus.Desc
	slowPlans       *prometheus.Desc
	activePlans     *prometheus.Desc
	planSeconds     *prometheus.Desc
}

// NewCollector 创建 Collector，metrics 可以为 nil
func NewCollector(rules *RuleStats, metrics *PlanMetrics) *Collector {
	return &Collector{
		rules:   rules,
		metrics: metrics,
		ruleInvocations: prometheus.NewDesc("planopt_rule_invocations_total",
			"Number of times an optimizer rule was applied to a matching node.", []string{"rule"}, nil),
		ruleFires: prometheus.NewDesc("planopt_rule_fires_total",
			"Number of times an optimizer rule rewrote the plan.", []string{"rule"}, nil),
		ruleFailures: prometheus.NewDesc("planopt_rule_failures_total",
			"Number of optimizer rule applications that failed.", []string{"rule"}, nil),
		ruleSeconds: prometheus.NewDesc("planopt_rule_seconds_total",
			"Time spent applying an optimizer rule.", []string{"rule"}, nil),
		passes: prometheus.NewDesc("planopt_optimizer_passes_total",
			"Number of optimizer passes.", nil, nil),
		failedPasses: prometheus.NewDesc("planopt_optimizer_failed_passes_total",
			"Number of optimizer passes that returned an error.", nil, nil),
		plans: prometheus.NewDesc("planopt_plans_total",
			"Number of planned queries.", nil, nil),
		planErrors: prometheus.NewDesc("planopt_plan_errors_total",
			"Number of failed plans by stage.", []string{"stage"}, nil),
		slowPlans: prometheus.NewDesc("planopt_slow_plans_total",
			"Number of plans slower than the slow-plan threshold.", nil, nil),
		activePlans: prometheus.NewDesc("planopt_active_plans",
			"Number of queries being planned.", nil, nil),
		planSeconds: prometheus.NewDesc("planopt_plan_seconds_total",
			"Time spent planning queries.", nil, nil),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ruleInvocations
	ch <- c.ruleFires
	ch <- c.ruleFailures
	ch <- c.ruleSeconds
	ch <- c.passes
	ch <- c.failedPasses
	if c.metrics != nil {
		ch <- c.plans
		ch <- c.planErrors
		ch <- c.slowPlans
		ch <- c.activePlans
		ch <- c.planSeconds
	}
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	rs := c.rules.GetSnapshot()
	for _, r := range rs.Rules {
		ch <- prometheus.MustNewConstMetric(c.ruleInvocations, prometheus.CounterValue, float64(r.Invocations), r.Rule)
		ch <- prometheus.MustNewConstMetric(c.ruleFires, prometheus.CounterValue, float64(r.Fires), r.Rule)
		ch <- prometheus.MustNewConstMetric(c.ruleFailures, prometheus.CounterValue, float64(r.Failures), r.Rule)
		ch <- prometheus.MustNewConstMetric(c.ruleSeconds, prometheus.CounterValue, r.Duration.Seconds(), r.Rule)
	}
	ch <- prometheus.MustNewConstMetric(c.passes, prometheus.CounterValue, float64(rs.Passes))
	ch <- prometheus.MustNewConstMetric(c.failedPasses, prometheus.CounterValue, float64(rs.FailedPasses))

	if c.metrics == nil {
		return
	}
	ps := c.metrics.GetSnapshot()
	ch <- prometheus.MustNewConstMetric(c.plans, prometheus.CounterValue, float64(ps.PlanCount))
	for stage, n := range ps.StageErrors {
		ch <- prometheus.MustNewConstMetric(c.planErrors, prometheus.CounterValue, float64(n), stage)
	}
	ch <- prometheus.MustNewConstMetric(c.slowPlans, prometheus.CounterValue, float64(ps.SlowPlanCount))
	ch <- prometheus.MustNewConstMetric(c.activePlans, prometheus.GaugeValue, float64(ps.ActivePlans))
	ch <- prometheus.MustNewConstMetric(c.planSeconds, prometheus.CounterValue, ps.TotalDuration.Seconds())
}
