// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001_processed_mails",
			Up: []string{
				`CREATE TABLE processed_mails (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					uid INTEGER NOT NULL,
					mailidhash TEXT NOT NULL UNIQUE,
					subject TEXT NOT NULL,
					files INTEGER NOT NULL,
					processedat DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_processed_mails_hash ON processed_mails (mailidhash)`,
			},
			Down: []string{`DROP TABLE processed_mails`},
		},
	},
}

type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

// IsProcessed reports whether a mail with the given header hash has already
// been run through the pipeline. Uids are session-scoped, the hash is the
// stable identity.
func (p *Persistence) IsProcessed(mailIdHash string) (bool, error) {
	var id int64
	err := p.db.Get(
		&id,
		`SELECT id FROM processed_mails WHERE mailidhash = ?`,
		mailIdHash,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not query db: %w", err)
	}

	return true, nil
}

func (p *Persistence) SaveProcessed(mails []domain.ProcessedMail) error {
	tx, err := p.db.Beginx()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	for _, m := range mails {
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO processed_mails (uid, mailidhash, subject, files, processedat) VALUES (?, ?, ?, ?, ?)`,
			m.Uid,
			m.MailIdHash,
			m.Subject,
			m.Files,
			m.ProcessedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("could not save processed mail: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	p.l.WithField("mails", len(mails)).Debug("Persisted processed mails")
	return nil
}
