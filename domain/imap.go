// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

//go:generate mockgen -destination=mocks/imap.go -package=mocks . MailSession

// HeaderInfo carries the raw, undecoded headers of a single mail as fetched
// from the server. Encoded-word decoding happens in the classifier.
type HeaderInfo struct {
	Uid       uint32
	Subject   string
	From      string
	Date      string
	MessageId string
}

// MailSession is one authenticated connection to the mail store. It is owned
// exclusively by a single pipeline run and must be closed exactly once.
type MailSession interface {
	// Search returns the uids of all mails from sender received since the
	// given time. The subject is deliberately not part of the server-side
	// query, exact subject matching happens client-side.
	Search(sender string, since time.Time) ([]uint32, error)
	FetchHeader(uid uint32) (*HeaderInfo, error)
	FetchFull(uid uint32) ([]byte, error)

	Close() error
}

// SessionDialer opens a fresh MailSession for one pipeline run.
type SessionDialer func() (MailSession, error)
