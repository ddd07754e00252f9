// SPDX-License-Identifier: GPL-3.0-or-later
package pipeline

import (
	"fmt"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"
	"github.com/mailpix/mailpix/mail"

	"github.com/sirupsen/logrus"
)

// Extractor turns one fetched mail into staged files.
type Extractor interface {
	Extract(uid uint32, rawMail []byte) []domain.ExtractedFile
}

// Pipeline scans the mailbox for photo mails and stages their images for
// upload. One Run opens one mail session and is strictly sequential, the
// expected volume is a handful of mails per run.
type Pipeline struct {
	persistence domain.Persistence
	dial        domain.SessionDialer
	attachments Extractor
	embedded    Extractor

	configuration *configuration

	l *logrus.Logger
}

func NewPipeline(persistence domain.Persistence, dial domain.SessionDialer, attachments, embedded Extractor, configFunc ...ConfigFunc) (*Pipeline, error) {
	config := &configuration{
		TargetWeekday: time.Friday,
	}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	if len(config.Sender) == 0 || len(config.Subject) == 0 {
		return nil, fmt.Errorf("a Filter configuration with sender and subject is required")
	}

	return &Pipeline{
		persistence:   persistence,
		dial:          dial,
		attachments:   attachments,
		embedded:      embedded,
		configuration: config,
		l:             log.Logger(log.LOG_PIPELINE),
	}, nil
}

// Run scans the last daysBack days of the inbox and returns the staged
// files. Only a failure to open the session is fatal. A failed search, a
// single unreadable mail or a single rejected file all degrade to fewer
// extracted files while the run still succeeds. The session is released
// exactly once on every exit path.
func (p *Pipeline) Run(daysBack int) ([]domain.ExtractedFile, error) {
	session, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("could not open mailbox session: %w", err)
	}
	defer func() {
		closeErr := session.Close()
		if closeErr != nil {
			p.l.WithField("error", closeErr).Warn("Error closing mailbox session")
		}
	}()

	since := time.Now().AddDate(0, 0, -daysBack)
	uids, err := session.Search(p.configuration.Sender, since)
	if err != nil {
		p.l.WithField("error", err).Warn("Mailbox search failed, treating run as empty")
		return []domain.ExtractedFile{}, nil
	}

	if len(uids) == 0 {
		p.l.WithFields(logrus.Fields{"sender": p.configuration.Sender, "daysback": daysBack}).Info("No candidate mails found")
		return []domain.ExtractedFile{}, nil
	}

	classified := p.classify(session, uids)
	if len(classified.Accepted) == 0 {
		p.l.Info("No mails passed classification")
		return []domain.ExtractedFile{}, nil
	}

	extracted := []domain.ExtractedFile{}
	processed := []domain.ProcessedMail{}
	for _, summary := range classified.Accepted {
		if p.configuration.SkipProcessed {
			known, err := p.persistence.IsProcessed(summary.MailIdHash)
			if err != nil {
				p.l.WithFields(logrus.Fields{"uid": summary.Uid, "error": err}).Warn("Could not check processed state, treating mail as new")
			} else if known {
				p.l.WithFields(logrus.Fields{"uid": summary.Uid, "subject": mail.ShortSubject(summary.Subject)}).Info("Mail already processed in an earlier run, skipping")
				continue
			}
		}

		files := p.processMail(session, summary)
		extracted = append(extracted, files...)
		processed = append(
			processed,
			domain.ProcessedMail{
				Uid:         summary.Uid,
				MailIdHash:  summary.MailIdHash,
				Subject:     summary.Subject,
				Files:       len(files),
				ProcessedAt: time.Now(),
			},
		)
	}

	if len(processed) > 0 {
		err = p.persistence.SaveProcessed(processed)
		if err != nil {
			p.l.WithField("error", err).Warn("Could not record processed mails")
		}
	}

	p.l.WithFields(logrus.Fields{"mails": len(processed), "files": len(extracted)}).Info("Pipeline run finished")
	return extracted, nil
}

// processMail stages the photos of one accepted mail: attachments first, the
// html image fallback only when the mail yielded no attachment files at all.
func (p *Pipeline) processMail(session domain.MailSession, summary *domain.MessageSummary) []domain.ExtractedFile {
	mailLogger := p.l.WithFields(logrus.Fields{"uid": summary.Uid, "subject": mail.ShortSubject(summary.Subject)})

	rawMail, err := session.FetchFull(summary.Uid)
	if err != nil {
		mailLogger.WithField("error", err).Warn("Could not fetch mail, skipping")
		return nil
	}

	files := p.attachments.Extract(summary.Uid, rawMail)
	if len(files) == 0 {
		mailLogger.Info("No attachment photos found, scanning html body for embedded images")
		files = p.embedded.Extract(summary.Uid, rawMail)
	}

	mailLogger.WithField("files", len(files)).Info("Processed mail")
	return files
}
