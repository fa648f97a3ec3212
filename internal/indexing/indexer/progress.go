package indexer

import (
	"time"
)

// Summary reports the outcome of one indexing run, on completion or
// interruption.
type Summary struct {
	RunID           string
	StartHeight     uint64
	EndHeight       uint64
	BlocksProcessed int
	BlocksSkipped   int
	Transactions    int
	WalletsTouched  int
	Elapsed         time.Duration
	LastCheckpoint  uint64
}

// progress tracks throughput across batches of one run.
type progress struct {
	total     int
	processed int
	start     time.Time
}

func newProgress(startHeight, endHeight uint64) *progress {
	return &progress{
		total: int(endHeight - startHeight + 1),
		start: time.Now(),
	}
}

func (p *progress) advance(blocks int) {
	p.processed += blocks
}

// rate returns blocks per second since the run started.
func (p *progress) rate() float64 {
	elapsed := time.Since(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.processed) / elapsed
}

// eta estimates remaining wall time at the current rate.
func (p *progress) eta() time.Duration {
	r := p.rate()
	if r <= 0 {
		return 0
	}
	remaining := float64(p.total-p.processed) / r
	return time.Duration(remaining * float64(time.Second)).Round(time.Second)
}

// percent returns run completion in percent.
func (p *progress) percent() float64 {
	if p.total == 0 {
		return 100
	}
	return 100 * float64(p.processed) / float64(p.total)
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start)
}
