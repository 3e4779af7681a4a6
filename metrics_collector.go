package mongodeck

import (
	"sync"
	"time"
)

// CommandExecutionMetrics 单次命令执行记录
type CommandExecutionMetrics struct {
	Host         string        `json:"host"`
	Kind         string        `json:"kind"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ConnectionMetrics 按目标主机聚合的执行指标
type ConnectionMetrics struct {
	Host            string        `json:"host"`
	TotalExecutions int64         `json:"total_executions"`
	SuccessfulExecs int64         `json:"successful_executions"`
	FailedExecs     int64         `json:"failed_executions"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastExecution   time.Time     `json:"last_execution"`
	LastError       string        `json:"last_error,omitempty"`
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	connectionMetrics map[string]*ConnectionMetrics
	executionHistory  []CommandExecutionMetrics
	maxHistorySize    int
	mutex             sync.RWMutex
	startTime         time.Time
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		connectionMetrics: make(map[string]*ConnectionMetrics),
		executionHistory:  make([]CommandExecutionMetrics, 0),
		maxHistorySize:    1000, // 保留最近1000次执行记录
		startTime:         time.Now(),
	}
}

// SetMaxHistorySize 设置最大历史记录数量
func (mc *DefaultMetricsCollector) SetMaxHistorySize(size int) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if size > 0 {
		mc.maxHistorySize = size
	}
}

// RecordCommandExecution 记录一次命令执行
func (mc *DefaultMetricsCollector) RecordCommandExecution(host, kind string, durationMs int64, err error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := time.Now()
	durationTime := time.Duration(durationMs) * time.Millisecond

	// 更新按主机聚合的指标
	if mc.connectionMetrics[host] == nil {
		mc.connectionMetrics[host] = &ConnectionMetrics{
			Host: host,
		}
	}

	metrics := mc.connectionMetrics[host]
	metrics.TotalExecutions++
	metrics.TotalDuration += durationTime
	metrics.LastExecution = now

	if err != nil {
		metrics.FailedExecs++
		metrics.LastError = err.Error()
	} else {
		metrics.SuccessfulExecs++
	}

	if metrics.TotalExecutions > 0 {
		metrics.AverageDuration = time.Duration(int64(metrics.TotalDuration) / metrics.TotalExecutions)
	}

	// 记录执行历史
	execution := CommandExecutionMetrics{
		Host:      host,
		Kind:      kind,
		Duration:  durationTime,
		Success:   err == nil,
		Timestamp: now,
	}

	if err != nil {
		execution.ErrorMessage = err.Error()
	}

	mc.executionHistory = append(mc.executionHistory, execution)

	// 限制历史记录大小
	if len(mc.executionHistory) > mc.maxHistorySize {
		copy(mc.executionHistory, mc.executionHistory[1:])
		mc.executionHistory = mc.executionHistory[:mc.maxHistorySize]
	}
}

// GetMetrics 获取指标
func (mc *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	// 复制聚合指标以避免并发问题
	connectionMetricsCopy := make(map[string]*ConnectionMetrics)
	for host, metrics := range mc.connectionMetrics {
		metricsCopy := *metrics
		connectionMetricsCopy[host] = &metricsCopy
	}

	totalExecutions := int64(0)
	totalDuration := time.Duration(0)
	successfulExecs := int64(0)
	failedExecs := int64(0)

	for _, metrics := range connectionMetricsCopy {
		totalExecutions += metrics.TotalExecutions
		totalDuration += metrics.TotalDuration
		successfulExecs += metrics.SuccessfulExecs
		failedExecs += metrics.FailedExecs
	}

	var averageDuration time.Duration
	if totalExecutions > 0 {
		averageDuration = time.Duration(int64(totalDuration) / totalExecutions)
	}

	var successRate float64
	if totalExecutions > 0 {
		successRate = float64(successfulExecs) / float64(totalExecutions) * 100
	}

	return map[string]interface{}{
		"start_time":         mc.startTime,
		"uptime":             time.Since(mc.startTime),
		"total_executions":   totalExecutions,
		"successful_execs":   successfulExecs,
		"failed_execs":       failedExecs,
		"success_rate":       successRate,
		"total_duration":     totalDuration,
		"average_duration":   averageDuration,
		"connection_metrics": connectionMetricsCopy,
		"history_size":       len(mc.executionHistory),
		"max_history_size":   mc.maxHistorySize,
	}
}

// GetConnectionMetrics 获取特定主机的聚合指标
func (mc *DefaultMetricsCollector) GetConnectionMetrics(host string) *ConnectionMetrics {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	if metrics, exists := mc.connectionMetrics[host]; exists {
		metricsCopy := *metrics
		return &metricsCopy
	}

	return nil
}

// GetRecentExecutions 获取最近的执行记录
func (mc *DefaultMetricsCollector) GetRecentExecutions(limit int) []CommandExecutionMetrics {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	if limit <= 0 || limit > len(mc.executionHistory) {
		limit = len(mc.executionHistory)
	}

	start := len(mc.executionHistory) - limit
	recent := make([]CommandExecutionMetrics, limit)
	copy(recent, mc.executionHistory[start:])

	return recent
}

// Reset 重置所有指标
func (mc *DefaultMetricsCollector) Reset() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.connectionMetrics = make(map[string]*ConnectionMetrics)
	mc.executionHistory = make([]CommandExecutionMetrics, 0)
	mc.startTime = time.Now()
}

// GetSummary 获取指标摘要
func (mc *DefaultMetricsCollector) GetSummary() map[string]interface{} {
	metrics := mc.GetMetrics()

	summary := map[string]interface{}{
		"uptime":           metrics["uptime"],
		"total_executions": metrics["total_executions"],
		"success_rate":     metrics["success_rate"],
		"average_duration": metrics["average_duration"],
	}

	hostSummary := make(map[string]interface{})
	if connectionMetrics, ok := metrics["connection_metrics"].(map[string]*ConnectionMetrics); ok {
		for host, cm := range connectionMetrics {
			var successRate float64
			if cm.TotalExecutions > 0 {
				successRate = float64(cm.SuccessfulExecs) / float64(cm.TotalExecutions) * 100
			}

			hostSummary[host] = map[string]interface{}{
				"executions":   cm.TotalExecutions,
				"success_rate": successRate,
				"avg_duration": cm.AverageDuration,
				"last_exec":    cm.LastExecution,
			}
		}
	}

	summary["hosts"] = hostSummary
	return summary
}

// NoopMetricsCollector 空实现，指标关闭时使用
type NoopMetricsCollector struct{}

// NewNoopMetricsCollector 创建空指标收集器
func NewNoopMetricsCollector() *NoopMetricsCollector {
	return &NoopMetricsCollector{}
}

// RecordCommandExecution 空实现
func (nc *NoopMetricsCollector) RecordCommandExecution(host, kind string, durationMs int64, err error) {
}

// GetMetrics 空实现
func (nc *NoopMetricsCollector) GetMetrics() map[string]interface{} {
	return map[string]interface{}{}
}

// GetRecentExecutions 空实现
func (nc *NoopMetricsCollector) GetRecentExecutions(limit int) []CommandExecutionMetrics {
	return nil
}

// Reset 空实现
func (nc *NoopMetricsCollector) Reset() {}
