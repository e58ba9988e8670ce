// Package campaign runs one pass over a contact table: skip everyone already
// delivered, send to the rest with batch pauses, then record who got a
// message and remove them from the table.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
	"github.com/whatsapp-automation/broadcaster/internal/contacts"
	"github.com/whatsapp-automation/broadcaster/internal/delivery"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
	"github.com/whatsapp-automation/broadcaster/internal/message"
	"github.com/whatsapp-automation/broadcaster/internal/phone"
)

// Summary is what a finished run reports.
type Summary struct {
	RunID       string
	Resumed     int
	Total       int
	Processed   int
	Sent        int
	Invalid     int
	Skipped     int
	Report      string
	Interrupted bool
	Duration    time.Duration
}

// Controller owns one run over a table.
type Controller struct {
	table    *contacts.Table
	ledger   ledger.Ledger
	messages message.Source
	pacer    *antiban.Pacer

	// DryRun leaves the table and the ledger untouched.
	DryRun   bool
	Now      func() time.Time
	OnFinish func(Summary)

	runID    string
	resumed  bool
	progress tracker
}

// New creates a controller. Nothing is read or written until Resume or Run.
func New(table *contacts.Table, l ledger.Ledger, messages message.Source, pacer *antiban.Pacer) *Controller {
	c := &Controller{
		table:    table,
		ledger:   l,
		messages: messages,
		pacer:    pacer,
		Now:      time.Now,
		runID:    uuid.NewString(),
	}
	c.progress.p = Progress{RunID: c.runID, State: StateIdle}
	return c
}

// RunID identifies this run in the ledger.
func (c *Controller) RunID() string { return c.runID }

// Progress returns the current snapshot.
func (c *Controller) Progress() Progress { return c.progress.snapshot() }

// Resume drops every contact the ledger already has and saves the filtered
// table over the input. It returns how many contacts are left. Calling it
// again is a no-op.
func (c *Controller) Resume() (int, error) {
	if c.resumed {
		return c.table.Len(), nil
	}
	c.progress.setState(StateResuming)

	removed := c.table.Drop(func(ct contacts.Contact) bool {
		return c.ledger.Has(phone.Canonical(ct.Phone))
	})
	c.resumed = true

	if removed > 0 {
		logrus.Infof("[Campaign] Skipping %s contacts already delivered in previous runs",
			humanize.Comma(int64(removed)))
		if !c.DryRun {
			if err := c.table.Save(); err != nil {
				return c.table.Len(), fmt.Errorf("save filtered contacts: %w", err)
			}
		}
	}

	pending := c.table.Len()
	c.progress.update(func(p *Progress) {
		p.Resumed = removed
		p.Total = pending
	})
	return pending, nil
}

// Run sends to every pending contact through sender. Cancelling ctx stops
// the loop; what was sent so far is still recorded and pruned. An interrupt
// is not an error.
func (c *Controller) Run(ctx context.Context, sender delivery.Sender) (Summary, error) {
	start := c.Now()
	if _, err := c.Resume(); err != nil {
		return Summary{RunID: c.runID}, err
	}
	c.progress.update(func(p *Progress) {
		p.StartedAt = start
		p.State = StateSending
	})

	sum := Summary{
		RunID:   c.runID,
		Resumed: c.progress.snapshot().Resumed,
		Total:   c.table.Len(),
	}
	if sum.Total == 0 {
		logrus.Info("[Campaign] All contacts have already been processed, nothing to send")
		c.progress.setState(StateDone)
		return sum, nil
	}

	logrus.Infof("[Campaign] Run %s: sending to %s contacts (batch %d, pause %v)",
		c.runID, humanize.Comma(int64(sum.Total)), c.pacer.Policy.BatchSize, c.pacer.Policy.BatchPause)

	var records []ledger.Record
	sentRows := make(map[int]bool)

	for _, ct := range c.table.Contacts() {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}

		number, ok := phone.Normalize(ct.Phone)
		if number == "" {
			logrus.Warnf("[Campaign] Row %d has no phone number, skipping", ct.Row+2)
			sum.Skipped++
			continue
		}

		if c.pacer.Policy.PauseBefore(sum.Processed) {
			logrus.Infof("[Campaign] Batch of %d done, pausing for %v", c.pacer.Policy.BatchSize, c.pacer.Policy.BatchPause)
			c.progress.setState(StatePausing)
			if err := c.pacer.Sleep(ctx, c.pacer.Policy.BatchPause); err != nil {
				sum.Interrupted = true
				break
			}
			c.progress.setState(StateSending)
		}

		if !ok {
			logrus.Warnf("[Campaign] Phone %q (row %d) normalized to %q, which is not a full mobile number", ct.Phone, ct.Row+2, number)
		}
		c.progress.update(func(p *Progress) { p.Current = number })
		text := message.Render(c.messages.Next(), ct.Name)
		logrus.Infof("[Campaign] (%d/%d) Sending to %s", sum.Processed+1, sum.Total, number)

		outcome, err := sender.AttemptSend(ctx, number, text)
		if err != nil && outcome != delivery.Sent {
			sum.Interrupted = true
			break
		}

		sum.Processed++
		switch outcome {
		case delivery.Sent:
			records = append(records, ledger.NewRecord(ct.Name, number, c.Now()))
			sentRows[ct.Row] = true
			sum.Sent++
		case delivery.InvalidNumber:
			sum.Invalid++
		default:
			sum.Skipped++
		}
		c.progress.update(func(p *Progress) {
			p.Processed = sum.Processed
			p.Sent = sum.Sent
			p.Invalid = sum.Invalid
			p.Skipped = sum.Skipped
		})

		if err != nil {
			sum.Interrupted = true
			break
		}
	}

	if sum.Interrupted {
		logrus.Warn("[Campaign] Interrupted, saving progress...")
	}

	// Finalization must survive the cancellation that got us here.
	report, err := c.finalize(context.WithoutCancel(ctx), records, sentRows)
	sum.Report = report
	sum.Duration = c.Now().Sub(start)
	c.progress.update(func(p *Progress) {
		p.State = StateDone
		p.Current = ""
	})

	c.logSummary(sum)
	if c.OnFinish != nil {
		c.OnFinish(sum)
	}
	return sum, err
}

// finalize records this run's deliveries and only then prunes them from the
// table, so a failed report never loses a delivery.
func (c *Controller) finalize(ctx context.Context, records []ledger.Record, rows map[int]bool) (string, error) {
	c.progress.setState(StateFinalizing)
	if c.DryRun || len(rows) == 0 {
		return "", nil
	}

	var report string
	if len(records) > 0 {
		var err error
		report, err = c.ledger.Record(ctx, c.runID, records)
		if err != nil && !errors.Is(err, ledger.ErrNothingToRecord) {
			logrus.Errorf("[Campaign] Failed to write delivery report, input left unchanged: %v", err)
			return report, fmt.Errorf("record deliveries: %w", err)
		}
		logrus.Infof("[Campaign] Delivery report saved: %s", report)
	}

	removed := c.table.DropRows(rows)
	if err := c.table.Save(); err != nil {
		return report, fmt.Errorf("save contacts: %w", err)
	}
	logrus.Infof("[Campaign] Removed %d sent contacts from %s", removed, c.table.Path)
	return report, nil
}

func (c *Controller) logSummary(s Summary) {
	logrus.WithFields(logrus.Fields{
		"run":     s.RunID,
		"sent":    s.Sent,
		"invalid": s.Invalid,
		"skipped": s.Skipped,
	}).Infof("[Campaign] Finished: %s of %s processed in %s",
		humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Total)), s.Duration.Round(time.Second))
}
