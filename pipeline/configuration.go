// SPDX-License-Identifier: GPL-3.0-or-later
package pipeline

import (
	"fmt"
	"time"
)

type ConfigFunc func(c *configuration) error

// Filter sets the sender address and the exact subject substring accepted
// mails must carry. Both are required.
func Filter(sender, subject string) ConfigFunc {
	return func(c *configuration) error {
		if len(sender) == 0 {
			return fmt.Errorf("sender cannot be empty")
		}
		if len(subject) == 0 {
			return fmt.Errorf("subject cannot be empty")
		}

		c.Sender = sender
		c.Subject = subject
		return nil
	}
}

// TargetWeekday sets the weekday the photo mails are expected on. The match
// is logged for diagnostics only and never rejects a mail.
func TargetWeekday(day time.Weekday) ConfigFunc {
	return func(c *configuration) error {
		c.TargetWeekday = day
		return nil
	}
}

// SkipProcessed makes the pipeline skip mails it has already extracted in an
// earlier run, so a scheduled re-run does not upload the same photos twice.
func SkipProcessed() ConfigFunc {
	return func(c *configuration) error {
		c.SkipProcessed = true
		return nil
	}
}

type configuration struct {
	Sender  string
	Subject string

	TargetWeekday time.Weekday

	SkipProcessed bool
}
