// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeaderInfos(t *testing.T) {
	rawHeader := []byte("From: News <news@school.org>\r\n" +
		"To: parent@example.com\r\n" +
		"Subject: [Weekly Update] Week 3\r\n" +
		"Date: Fri, 15 Dec 2023 18:46:00 +0000\r\n" +
		"Message-Id: <abc123@school.org>\r\n")

	subject, from, date, messageId, err := HeaderInfos(rawHeader)
	assert.NoError(t, err)
	assert.Equal(t, "[Weekly Update] Week 3", subject)
	assert.Equal(t, "News <news@school.org>", from)
	assert.Equal(t, "Fri, 15 Dec 2023 18:46:00 +0000", date)
	assert.Equal(t, "<abc123@school.org>", messageId)
}

func TestHeaderInfosMalformed(t *testing.T) {
	_, _, _, _, err := HeaderInfos([]byte("this is not a mail header"))
	assert.Error(t, err)
}

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"plain unchanged", "[Weekly Update] Week 3", "[Weekly Update] Week 3"},
		{"empty", "", ""},
		{"q-encoded", "=?utf-8?q?Caf=C3=A9?=", "Café"},
		{"b-encoded", "=?utf-8?B?V2Vla2x5IFVwZGF0ZQ==?=", "Weekly Update"},
		{"multi-part encoded words", "=?utf-8?q?Weekly=20?= =?utf-8?q?Update?=", "Weekly Update"},
		{"unknown charset falls back to raw", "=?x-unknown-charset?q?abc?=", "=?x-unknown-charset?q?abc?="},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DecodeHeader(tc.header))
		})
	}
}

func TestDecodeHeaderIdempotent(t *testing.T) {
	decoded := DecodeHeader("=?utf-8?q?Caf=C3=A9?=")
	assert.Equal(t, decoded, DecodeHeader(decoded))
}

func TestMailIdHash(t *testing.T) {
	hash := MailIdHash("<abc@school.org>", "Fri, 15 Dec 2023 18:46:00 +0000")
	assert.Equal(t, hash, MailIdHash("<abc@school.org>", "Fri, 15 Dec 2023 18:46:00 +0000"))
	assert.NotEqual(t, hash, MailIdHash("<def@school.org>", "Fri, 15 Dec 2023 18:46:00 +0000"))
	assert.Len(t, hash, 64)
}

func TestIsWeekday(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		day      time.Weekday
		expected bool
	}{
		{"friday mail on friday", "Fri, 15 Dec 2023 18:46:00 +0000", time.Friday, true},
		{"thursday mail on friday", "Thu, 14 Dec 2023 09:00:00 +0000", time.Friday, false},
		{"friday mail on monday", "Fri, 15 Dec 2023 18:46:00 +0000", time.Monday, false},
		{"unparseable date", "not a date", time.Friday, false},
		{"empty date", "", time.Friday, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsWeekday(tc.date, tc.day))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
	}{
		{"safe name unchanged", "photo.JPG", "photo.JPG"},
		{"spaces replaced", "class photo 3.jpg", "class_photo_3.jpg"},
		{"path separators replaced", "../../etc/passwd", ".._.._etc_passwd"},
		{"umlauts replaced", "klassenföto.png", "klassenf_to.png"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.filename))
		})
	}
}

func TestShortSubject(t *testing.T) {
	assert.Equal(t, "short", ShortSubject("short"))
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa...", ShortSubject("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
}
