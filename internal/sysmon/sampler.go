// Package sysmon samples system resource usage (CPU, memory, network and
// disk I/O) on a fixed interval while a monitoring run is active.
package sysmon

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
)

// Sample is one point-in-time resource snapshot. Network and disk fields are
// deltas against the previous cumulative reading, not running totals.
type Sample struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  float64
	MemoryTotalMB float64
	CPUCount      int

	NetBytesSent   uint64
	NetBytesRecv   uint64
	DiskReadBytes  uint64
	DiskWriteBytes uint64
}

// Summary aggregates a run's sample history. Absolute CPU figures are
// percent multiplied by core count, comparable on a 0-100 x cores scale.
type Summary struct {
	CPUAverage         float64 `json:"cpu_average"`
	CPUAbsoluteAverage float64 `json:"cpu_absolute_average"`
	CPUPeak            float64 `json:"cpu_peak"`
	CPUAbsolutePeak    float64 `json:"cpu_absolute_peak"`

	MemoryAveragePercent float64 `json:"memory_average_percent"`
	MemoryPeakPercent    float64 `json:"memory_peak_percent"`
	MemoryAverageMB      float64 `json:"memory_average_mb"`
	MemoryPeakMB         float64 `json:"memory_peak_mb"`
	MemoryTotalMB        float64 `json:"memory_total_mb"`

	CPUCount       int    `json:"cpu_count"`
	NetBytesSent   uint64 `json:"net_bytes_sent"`
	NetBytesRecv   uint64 `json:"net_bytes_recv"`
	DiskReadBytes  uint64 `json:"disk_read_bytes"`
	DiskWriteBytes uint64 `json:"disk_write_bytes"`
	Samples        int    `json:"samples"`
}

// Sampler runs a background loop taking one Sample per interval. The history
// lives behind the sampler's mutex; callers only ever see it through
// Summary().
type Sampler struct {
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	history []Sample
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	lastNetSent   uint64
	lastNetRecv   uint64
	lastDiskRead  uint64
	lastDiskWrite uint64
}

// New creates a sampler and captures the baseline network/disk counters so
// the first sample's deltas are relative to construction time. The CPU
// counter is primed for the same reason.
func New(interval time.Duration, log zerolog.Logger) *Sampler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	s := &Sampler{interval: interval, log: log}
	s.lastNetSent, s.lastNetRecv = readNetCounters()
	s.lastDiskRead, s.lastDiskWrite = readDiskCounters()
	cpu.Percent(0, false) // prime the since-last-call reading
	return s
}

// Start launches the sampling loop: an immediate first sample, then one per
// interval. Calling Start on a running sampler is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopCh, s.done
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("resource sampling started")
	go s.loop(stop, done)
}

func (s *Sampler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.record(s.collect())
	for {
		select {
		case <-stop:
			return
		case <-time.After(s.interval):
			s.record(s.collect())
		}
	}
}

// Stop terminates the loop, waiting at most two seconds for it to exit.
// Stopping an idle sampler is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopCh, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	s.log.Info().Msg("resource sampling stopped")
}

func (s *Sampler) collect() Sample {
	smp := Sample{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		smp.CPUPercent = pct[0]
	}
	if n, err := cpu.Counts(true); err == nil {
		smp.CPUCount = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		smp.MemoryPercent = vm.UsedPercent
		smp.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
		smp.MemoryTotalMB = float64(vm.Total) / (1024 * 1024)
	}

	sent, recv := readNetCounters()
	if sent >= s.lastNetSent {
		smp.NetBytesSent = sent - s.lastNetSent
	}
	if recv >= s.lastNetRecv {
		smp.NetBytesRecv = recv - s.lastNetRecv
	}
	s.lastNetSent, s.lastNetRecv = sent, recv

	read, write := readDiskCounters()
	if read >= s.lastDiskRead {
		smp.DiskReadBytes = read - s.lastDiskRead
	}
	if write >= s.lastDiskWrite {
		smp.DiskWriteBytes = write - s.lastDiskWrite
	}
	s.lastDiskRead, s.lastDiskWrite = read, write

	return smp
}

func (s *Sampler) record(smp Sample) {
	s.mu.Lock()
	s.history = append(s.history, smp)
	s.mu.Unlock()

	s.log.Debug().
		Float64("cpu_percent", smp.CPUPercent).
		Float64("memory_percent", smp.MemoryPercent).
		Float64("memory_mb", smp.MemoryUsedMB).
		Uint64("net_sent", smp.NetBytesSent).
		Uint64("net_recv", smp.NetBytesRecv).
		Msg("resource sample")
}

// Summary computes averages, peaks and totals over the sample history. With
// no samples it returns a zero-valued summary, never an error.
func (s *Sampler) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary
	if len(s.history) == 0 {
		return sum
	}

	for _, smp := range s.history {
		sum.CPUAverage += smp.CPUPercent
		sum.MemoryAveragePercent += smp.MemoryPercent
		sum.MemoryAverageMB += smp.MemoryUsedMB
		if smp.CPUPercent > sum.CPUPeak {
			sum.CPUPeak = smp.CPUPercent
		}
		if smp.MemoryPercent > sum.MemoryPeakPercent {
			sum.MemoryPeakPercent = smp.MemoryPercent
		}
		if smp.MemoryUsedMB > sum.MemoryPeakMB {
			sum.MemoryPeakMB = smp.MemoryUsedMB
		}
		sum.NetBytesSent += smp.NetBytesSent
		sum.NetBytesRecv += smp.NetBytesRecv
		sum.DiskReadBytes += smp.DiskReadBytes
		sum.DiskWriteBytes += smp.DiskWriteBytes
	}

	n := float64(len(s.history))
	sum.CPUAverage /= n
	sum.MemoryAveragePercent /= n
	sum.MemoryAverageMB /= n
	sum.MemoryTotalMB = s.history[0].MemoryTotalMB
	sum.CPUCount = s.history[0].CPUCount
	sum.CPUAbsoluteAverage = sum.CPUAverage * float64(sum.CPUCount)
	sum.CPUAbsolutePeak = sum.CPUPeak * float64(sum.CPUCount)
	sum.Samples = len(s.history)
	return sum
}

func readNetCounters() (sent, recv uint64) {
	counters, err := gnet.IOCounters(false)
	if err != nil || len(counters) == 0 {
		return 0, 0
	}
	return counters[0].BytesSent, counters[0].BytesRecv
}

func readDiskCounters() (read, write uint64) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0
	}
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}
	return read, write
}
