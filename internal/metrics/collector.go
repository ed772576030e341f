package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// DefaultInterval is used when the configured interval is below one second
const DefaultInterval = 30 * time.Second

// SystemSample is one snapshot of host and process usage
type SystemSample struct {
	CPUPercent        float64 // system wide, 0-100
	ProcessCPUPercent float64 // per core, can exceed 100
	ProcessRSS        uint64
	MemoryUsed        uint64
	MemoryPercent     float64
	Timestamp         time.Time
}

// Sampler periodically samples system usage, logs it and mirrors it into
// Prometheus gauges
type Sampler struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	cpuGauge prometheus.Gauge
	procCPU  prometheus.Gauge
	rssGauge prometheus.Gauge
	memGauge prometheus.Gauge

	mu   sync.RWMutex
	last *SystemSample
}

// NewSampler creates a sampler. reg may be nil to skip Prometheus export.
func NewSampler(interval time.Duration, logger *zap.Logger, reg prometheus.Registerer) *Sampler {
	if interval < time.Second {
		interval = DefaultInterval
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	s := &Sampler{
		interval: interval,
		logger:   logger,
		proc:     proc,
		cpuGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmworld_system_cpu_percent",
			Help: "System wide CPU usage.",
		}),
		procCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmworld_process_cpu_percent",
			Help: "CPU usage of this process, per core.",
		}),
		rssGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmworld_process_rss_bytes",
			Help: "Resident set size of this process.",
		}),
		memGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmworld_system_memory_percent",
			Help: "System memory in use.",
		}),
	}

	if reg != nil {
		if err := s.register(reg); err != nil {
			logger.Warn("Failed to register system gauges", zap.Error(err))
		}
	}

	return s
}

func (s *Sampler) register(reg prometheus.Registerer) error {
	var err error
	if s.cpuGauge, err = register(reg, s.cpuGauge, "osmworld_system_cpu_percent"); err != nil {
		return err
	}
	if s.procCPU, err = register(reg, s.procCPU, "osmworld_process_cpu_percent"); err != nil {
		return err
	}
	if s.rssGauge, err = register(reg, s.rssGauge, "osmworld_process_rss_bytes"); err != nil {
		return err
	}
	s.memGauge, err = register(reg, s.memGauge, "osmworld_system_memory_percent")
	return err
}

// Start samples until ctx is cancelled
func (s *Sampler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sample()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("System sampling stopped")
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Last returns the most recent sample, nil before the first one
func (s *Sampler) Last() *SystemSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Sample takes one sample, stores it, updates the gauges and logs it
func (s *Sampler) Sample() *SystemSample {
	sample := &SystemSample{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		sample.CPUPercent = pct[0]
	}

	if s.proc != nil {
		if pct, err := s.proc.Percent(0); err == nil {
			sample.ProcessCPUPercent = pct
		}
		if info, err := s.proc.MemoryInfo(); err == nil && info != nil {
			sample.ProcessRSS = info.RSS
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		sample.MemoryUsed = vmem.Used
		sample.MemoryPercent = vmem.UsedPercent
	}

	s.cpuGauge.Set(sample.CPUPercent)
	s.procCPU.Set(sample.ProcessCPUPercent)
	s.rssGauge.Set(float64(sample.ProcessRSS))
	s.memGauge.Set(sample.MemoryPercent)

	s.mu.Lock()
	s.last = sample
	s.mu.Unlock()

	s.logger.Info("System metrics",
		zap.Float64("sys_cpu", sample.CPUPercent),
		zap.Float64("proc_cpu", sample.ProcessCPUPercent),
		zap.String("rss", humanize.Bytes(sample.ProcessRSS)),
		zap.String("mem_used", humanize.Bytes(sample.MemoryUsed)),
		zap.Float64("mem_pct", sample.MemoryPercent),
	)
	return sample
}
