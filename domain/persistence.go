// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

//go:generate mockgen -destination=mocks/persistence.go -package=mocks . Persistence

// ProcessedMail records that a mail has been run through the extraction
// pipeline so a later scheduled run does not extract and upload it again.
// The mail is identified by a hash over its headers because uids are not
// stable across sessions.
type ProcessedMail struct {
	Uid         uint32
	MailIdHash  string
	Subject     string
	Files       int
	ProcessedAt time.Time
}

type Persistence interface {
	Close() error
	IsProcessed(mailIdHash string) (bool, error)
	SaveProcessed(mails []ProcessedMail) error
}
