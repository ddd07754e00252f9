// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"
	"io"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"
	"github.com/mailpix/mailpix/mail"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const InboxFolder = "INBOX"

// ImapConnection implements domain.MailSession on a single authenticated
// imap connection with INBOX selected read-only.
type ImapConnection struct {
	connection *client.Client

	server, user string

	l *logrus.Logger
}

func NewImapConnection(server, user, password string, noTLS bool) (*ImapConnection, error) {
	var imapClient *client.Client
	var err error
	if noTLS {
		imapClient, err = client.Dial(server)
	} else {
		imapClient, err = client.DialTLS(server, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	err = imapClient.Login(user, password)
	if err != nil {
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	conn := &ImapConnection{
		connection: imapClient,
		server:     server,
		user:       user,
		l:          log.Logger(log.LOG_IMAP),
	}

	conn.l.WithFields(logrus.Fields{"server": server, "tls": !noTLS}).Debug("Logged in to server")

	// The pipeline only ever reads, select the inbox read-only so no flags
	// are touched on the server.
	_, err = imapClient.Select(InboxFolder, true)
	if err != nil {
		return nil, fmt.Errorf("could not select %s: %w", InboxFolder, err)
	}

	return conn, nil
}

// Search queries the server for mails from sender received since the given
// time. The query is intentionally coarse: subject matching against the
// server's free-text search is unreliable for bracket-delimited subjects, so
// subject precision is left to the client-side classifier.
func (ic *ImapConnection) Search(sender string, since time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", sender)
	criteria.Since = since

	uids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search mails from %s: %w", sender, err)
	}

	ic.l.WithFields(logrus.Fields{"sender": sender, "since": since.Format("2006-01-02"), "found": len(uids)}).Debug("Searched inbox")
	return uids, nil
}

// FetchHeader fetches only the headers the classifier needs, without marking
// the mail as read.
func (ic *ImapConnection) FetchHeader(uid uint32) (*domain.HeaderInfo, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields: []string{
				"Subject",
				"From",
				"Date",
				"Message-Id",
			},
		},
		Peek: true,
	}

	rawHeader, err := ic.fetchSection(uid, section)
	if err != nil {
		return nil, err
	}

	subject, from, date, messageId, err := mail.HeaderInfos(rawHeader)
	if err != nil {
		return nil, fmt.Errorf("could not parse mail header infos: %w", err)
	}

	return &domain.HeaderInfo{
		Uid:       uid,
		Subject:   subject,
		From:      from,
		Date:      date,
		MessageId: messageId,
	}, nil
}

// FetchFull fetches the complete raw mail including all mime parts.
func (ic *ImapConnection) FetchFull(uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{
		Peek: true,
	}

	return ic.fetchSection(uid, section)
}

func (ic *ImapConnection) fetchSection(uid uint32, section *imap.BodySectionName) ([]byte, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	fetchItems := []imap.FetchItem{section.FetchItem()}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	var body []byte
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}

		rawBody, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not read mail body: %w", err)
		}
		body = rawBody
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mail %d: %w", uid, err)
	}

	if body == nil {
		return nil, fmt.Errorf("server returned no body for mail %d", uid)
	}

	return body, nil
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}
