// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"mime"
	stdmail "net/mail"
	"regexp"
	"time"

	"github.com/emersion/go-message/charset"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// HeaderInfos parses the raw header block of a mail and returns the
// undecoded Subject, From, Date and Message-Id values.
func HeaderInfos(rawHeader []byte) (subject, from, date, messageId string, err error) {
	// A trailing blank line may be missing when only the header section was
	// fetched, net/mail needs it to terminate the header block.
	msg, err := stdmail.ReadMessage(bytes.NewReader(append(rawHeader, '\r', '\n')))
	if err != nil {
		return "", "", "", "", fmt.Errorf("could not parse mail header: %w", err)
	}

	return msg.Header.Get("Subject"),
		msg.Header.Get("From"),
		msg.Header.Get("Date"),
		msg.Header.Get("Message-Id"),
		nil
}

// DecodeHeader decodes encoded-word headers (RFC 2047) including multi-part
// words in foreign charsets. Decoding never fails: if the header cannot be
// decoded, the raw input is returned as-is. Plain headers pass through
// unchanged.
func DecodeHeader(header string) string {
	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}

	return decoded
}

// MailIdHash identifies a mail independently of its session-scoped uid.
func MailIdHash(info ...string) string {
	sha := sha256.New()
	for _, i := range info {
		sha.Write([]byte(i))
	}

	return fmt.Sprintf("%x", sha.Sum(nil))
}

// IsWeekday reports whether the Date header falls on the given weekday.
// Unparseable dates count as false, the classification is advisory only.
func IsWeekday(dateHeader string, day time.Weekday) bool {
	parsed, err := stdmail.ParseDate(dateHeader)
	if err != nil {
		return false
	}

	return parsed.Weekday() == day
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with an
// underscore so the name is safe for the staging directory.
func SanitizeFilename(filename string) string {
	return unsafeFilenameChars.ReplaceAllString(filename, "_")
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
