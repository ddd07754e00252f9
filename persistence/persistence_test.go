// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	os.Exit(m.Run())
}

func testPersistence(t *testing.T) *Persistence {
	t.Helper()
	p, err := NewPersistence(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, p.Close())
	})
	return p
}

func processedMail(uid uint32, hash string, files int) domain.ProcessedMail {
	return domain.ProcessedMail{
		Uid:         uid,
		MailIdHash:  hash,
		Subject:     "[Weekly Update] Week 3",
		Files:       files,
		ProcessedAt: time.Now(),
	}
}

func TestIsProcessedUnknownHash(t *testing.T) {
	p := testPersistence(t)

	known, err := p.IsProcessed("deadbeef")
	assert.NoError(t, err)
	assert.False(t, known)
}

func TestSaveProcessedRoundtrip(t *testing.T) {
	p := testPersistence(t)

	err := p.SaveProcessed([]domain.ProcessedMail{
		processedMail(9, "hash-9", 3),
		processedMail(10, "hash-10", 0),
	})
	assert.NoError(t, err)

	for _, hash := range []string{"hash-9", "hash-10"} {
		known, err := p.IsProcessed(hash)
		assert.NoError(t, err)
		assert.True(t, known)
	}
}

// Re-saving a mail after a re-run must not fail, the hash stays unique.
func TestSaveProcessedIsIdempotent(t *testing.T) {
	p := testPersistence(t)

	assert.NoError(t, p.SaveProcessed([]domain.ProcessedMail{processedMail(9, "hash-9", 3)}))
	assert.NoError(t, p.SaveProcessed([]domain.ProcessedMail{processedMail(9, "hash-9", 4)}))

	known, err := p.IsProcessed("hash-9")
	assert.NoError(t, err)
	assert.True(t, known)
}

func TestMigrationsApplyToExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	p, err := NewPersistence(path)
	assert.NoError(t, err)
	assert.NoError(t, p.SaveProcessed([]domain.ProcessedMail{processedMail(9, "hash-9", 3)}))
	assert.NoError(t, p.Close())

	reopened, err := NewPersistence(path)
	assert.NoError(t, err)
	defer reopened.Close()

	known, err := reopened.IsProcessed("hash-9")
	assert.NoError(t, err)
	assert.True(t, known)
}
