// SPDX-License-Identifier: GPL-3.0-or-later
package pipeline

import (
	"strings"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/mail"

	"github.com/sirupsen/logrus"
)

// ClassifyResult is the outcome of re-validating the server's coarse search
// result client-side. Accepted is always a subset of the candidates.
type ClassifyResult struct {
	Accepted []*domain.MessageSummary

	Candidates int
	TargetDay  int
}

// classify fetches the headers of every candidate and applies the exact
// filters the server-side search cannot: the sender must appear in the
// decoded From header and the configured subject substring must appear in
// the decoded Subject. A candidate whose headers cannot be fetched is
// rejected without aborting the batch. The target-day check is advisory
// only, it counts but never rejects.
func (p *Pipeline) classify(session domain.MailSession, uids []uint32) *ClassifyResult {
	result := &ClassifyResult{
		Accepted:   []*domain.MessageSummary{},
		Candidates: len(uids),
	}

	loweredSender := strings.ToLower(p.configuration.Sender)
	for _, uid := range uids {
		header, err := session.FetchHeader(uid)
		if err != nil {
			p.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("Could not fetch headers, rejecting mail")
			continue
		}

		subject := mail.DecodeHeader(header.Subject)
		from := mail.DecodeHeader(header.From)

		if !strings.Contains(strings.ToLower(from), loweredSender) {
			p.l.WithFields(logrus.Fields{"uid": uid, "from": from}).Debug("Rejecting mail, not from configured sender")
			continue
		}

		if !strings.Contains(subject, p.configuration.Subject) {
			p.l.WithFields(logrus.Fields{"uid": uid, "subject": mail.ShortSubject(subject)}).Debug("Rejecting mail, subject does not match")
			continue
		}

		isTargetDay := mail.IsWeekday(header.Date, p.configuration.TargetWeekday)
		if isTargetDay {
			result.TargetDay++
		}

		p.l.WithFields(logrus.Fields{
			"uid":       uid,
			"subject":   mail.ShortSubject(subject),
			"date":      header.Date,
			"targetday": isTargetDay,
		}).Info("Accepted mail")

		result.Accepted = append(
			result.Accepted,
			&domain.MessageSummary{
				Uid:         uid,
				Subject:     subject,
				From:        from,
				Date:        header.Date,
				MailIdHash:  mail.MailIdHash(header.MessageId, header.Date, header.From, header.Subject),
				IsTargetDay: isTargetDay,
			},
		)
	}

	p.l.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"accepted":   len(result.Accepted),
		"targetday":  result.TargetDay,
	}).Info("Classified candidate mails")

	return result
}
