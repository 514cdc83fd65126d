package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metaldesk/pkg/filedb"
	"metaldesk/pkg/matching"
)

// journalStats counts formations per outcome.
type journalStats struct {
	total    int
	outcomes map[string]int
	steps    map[string]int // failed steps
	last     matching.JournalEntry
}

func newJournalStats() *journalStats {
	return &journalStats{outcomes: map[string]int{}, steps: map[string]int{}}
}

func (s *journalStats) add(e matching.JournalEntry) {
	s.total++
	s.outcomes[e.Outcome]++
	for _, se := range e.StepErrors {
		s.steps[se.Step]++
	}
	s.last = e
}

func (s *journalStats) report() {
	if s.total == 0 {
		logger.Info("journal is empty")
		return
	}
	lag := time.Since(time.UnixMilli(s.last.Time)).Truncate(time.Second)
	logger.Infof("journal: %d formations, committed:%d partial:%d failed:%d, failed steps %v, last order %s %s ago",
		s.total,
		s.outcomes[matching.OutcomeCommitted],
		s.outcomes[matching.OutcomePartial],
		s.outcomes[matching.OutcomeFailed],
		s.steps, s.last.OrderID, lag)
}

// startJournalMonitor follows the order formation journal
//
//	Function 1: Log every partial or failed formation as it is written
//	Function 2: Report outcome totals every 30 seconds
func startJournalMonitor() (err error) {
	fdb, err := filedb.New(journalPath())
	if err != nil {
		return
	}
	defer fdb.Close()

	if !fFollow {
		line, err := fdb.ReadLastLine()
		if err != nil {
			return err
		}
		logger.Infof("last formation: %s", line)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string, 1024)
	errCh := make(chan error, 1)
	go func() {
		errCh <- fdb.Tailf(ctx, lines)
	}()

	stats := newJournalStats()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case line := <-lines:
			var e matching.JournalEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				logger.Errorf("journal line %q: %v", line, err)
				continue
			}
			stats.add(e)
			if e.Outcome != matching.OutcomeCommitted {
				logger.Warningf("order %s %s (%s): %s %v", e.OrderID, e.Outcome, e.Mode, e.Error, e.StepErrors)
			}
		case <-ticker.C:
			stats.report()
		case err = <-errCh:
			stats.report()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
