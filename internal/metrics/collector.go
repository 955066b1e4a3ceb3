package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const (
	metricsStreamName = "METRICS"
	metricsSubject    = "metrics.system"
)

// WorkerCounter reports how many workers are currently live
type WorkerCounter interface {
	Len() int
}

// Snapshot is the metrics record published on every collection tick
type Snapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	CPUUsage         float64   `json:"cpu_usage"`
	MemoryUsage      float64   `json:"memory_usage"`
	ActiveWorkers    int       `json:"active_workers"`
	TotalChecks      int64     `json:"total_checks"`
	SuccessfulChecks int64     `json:"successful_checks"`
	FailedChecks     int64     `json:"failed_checks"`
}

// Collector samples host and engine metrics on an interval and publishes
// them to NATS
type Collector struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	stats    *Stats
	workers  WorkerCounter
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector and ensures the METRICS
// stream exists
func NewCollector(logger *zap.Logger, js nats.JetStreamContext, stats *Stats, workers WorkerCounter, interval time.Duration) (*Collector, error) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	if _, err := js.StreamInfo(metricsStreamName); err != nil {
		if err != nats.ErrStreamNotFound {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     metricsStreamName,
			Subjects: []string{"metrics.*"},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics stream: %w", err)
		}
	}

	return &Collector{
		logger:   logger.Named("metrics-collector"),
		js:       js,
		stats:    stats,
		workers:  workers,
		interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

// Start launches the collection loop
func (c *Collector) Start(ctx context.Context) {
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))
	go c.collectLoop(ctx)
}

// Stop stops the collection loop
func (c *Collector) Stop() {
	c.logger.Info("Stopping metrics collector")
	close(c.stop)
}

func (c *Collector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// collect gathers one snapshot and publishes it
func (c *Collector) collect() {
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		c.logger.Error("Failed to get CPU usage", zap.Error(err))
		return
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Error("Failed to get memory usage", zap.Error(err))
		return
	}

	total, successful, failed := c.stats.Totals()
	snapshot := Snapshot{
		Timestamp:        time.Now(),
		CPUUsage:         cpuPercent[0],
		MemoryUsage:      memInfo.UsedPercent,
		ActiveWorkers:    c.workers.Len(),
		TotalChecks:      total,
		SuccessfulChecks: successful,
		FailedChecks:     failed,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Error("Failed to marshal metrics", zap.Error(err))
		return
	}

	if _, err := c.js.Publish(metricsSubject, data); err != nil {
		c.logger.Error("Failed to publish metrics", zap.Error(err))
		return
	}

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", snapshot.CPUUsage),
		zap.Float64("memory_usage", snapshot.MemoryUsage),
		zap.Int("active_workers", snapshot.ActiveWorkers),
		zap.Int64("total_checks", snapshot.TotalChecks))
}
