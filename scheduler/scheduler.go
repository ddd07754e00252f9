// SPDX-License-Identifier: GPL-3.0-or-later
package scheduler

import (
	"fmt"
	"time"

	"github.com/mailpix/mailpix/log"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler re-invokes the pipeline job on a cron schedule and keeps simple
// run statistics for diagnostics.
type Scheduler struct {
	cron *cronv3.Cron
	job  func() error

	runs      int
	successes int
	lastRun   time.Time

	l *logrus.Logger
}

func NewScheduler(job func() error) *Scheduler {
	return &Scheduler{
		cron: cronv3.New(),
		job:  job,
		l:    log.Logger(log.LOG_SCHEDULER),
	}
}

// Start registers the job under the given cron spec and blocks forever.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runJob)
	if err != nil {
		return fmt.Errorf("could not parse schedule %q: %w", spec, err)
	}

	s.l.WithField("schedule", spec).Info("Scheduler started")
	s.cron.Run()
	return nil
}

func (s *Scheduler) runJob() {
	s.runs++
	s.lastRun = time.Now()
	s.l.WithField("run", s.runs).Info("Starting scheduled run")

	err := s.job()
	if err != nil {
		s.l.WithFields(logrus.Fields{"run": s.runs, "error": err}).Error("Scheduled run failed")
	} else {
		s.successes++
		s.l.WithField("run", s.runs).Info("Scheduled run finished")
	}

	s.l.WithFields(logrus.Fields{
		"runs":      s.runs,
		"successes": s.successes,
		"lastrun":   s.lastRun.Format("2006-01-02 15:04:05"),
	}).Info("Scheduler statistics")
}
