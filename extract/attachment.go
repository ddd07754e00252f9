// SPDX-License-Identifier: GPL-3.0-or-later
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"
	"github.com/mailpix/mailpix/mail"

	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "20060102_150405"

// AttachmentExtractor walks a mail's mime structure and writes every
// accepted file attachment into the staging directory.
type AttachmentExtractor struct {
	allowed    map[string]bool
	maxSize    int64
	stagingDir string

	l *logrus.Logger
}

func NewAttachmentExtractor(allowedExtensions []string, maxSize int64, stagingDir string) *AttachmentExtractor {
	return &AttachmentExtractor{
		allowed:    extensionSet(allowedExtensions),
		maxSize:    maxSize,
		stagingDir: stagingDir,
		l:          log.Logger(log.LOG_EXTRACT),
	}
}

// Extract writes all attachments of the mail that pass the extension
// allow-list and the size ceiling. Every rejection only skips the single
// file, a mail with one broken attachment still yields the others.
func (ae *AttachmentExtractor) Extract(uid uint32, rawMail []byte) []domain.ExtractedFile {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(rawMail))
	if err != nil {
		ae.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("Could not parse mail body, skipping mail")
		return nil
	}

	files := []domain.ExtractedFile{}
	for _, part := range envelope.Attachments {
		if part.FileName == "" {
			continue
		}

		filename := mail.DecodeHeader(part.FileName)
		partLogger := ae.l.WithFields(logrus.Fields{"uid": uid, "filename": filename})

		extension := strings.ToLower(filepath.Ext(filename))
		if !ae.allowed[extension] {
			partLogger.Info("Skipping non-image attachment")
			continue
		}

		size := int64(len(part.Content))
		if size > ae.maxSize {
			partLogger.WithField("size", size).Warn("Attachment too large, skipping")
			continue
		}

		name := fmt.Sprintf("%s_%d_%s", time.Now().Format(timestampFormat), uid, mail.SanitizeFilename(filename))
		path := filepath.Join(ae.stagingDir, name)
		err = writeStaged(path, part.Content)
		if err != nil {
			partLogger.WithField("error", err).Error("Could not write attachment to staging, skipping")
			continue
		}

		partLogger.WithField("path", path).Info("Extracted attachment")
		files = append(
			files,
			domain.ExtractedFile{
				LocalPath: path,
				Uid:       uid,
				Origin:    domain.OriginAttachment,
				Size:      size,
			},
		)
	}

	return files
}

func extensionSet(extensions []string) map[string]bool {
	set := map[string]bool{}
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// writeStaged refuses to overwrite: staged names embed timestamp, uid and
// index, a colliding name within a run is a bug and must not clobber files.
func writeStaged(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("could not create staged file: %w", err)
	}

	_, err = f.Write(data)
	if err != nil {
		f.Close()
		return fmt.Errorf("could not write staged file: %w", err)
	}

	return f.Close()
}
