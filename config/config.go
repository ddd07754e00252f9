// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ImapHost  string
	ImapNoTLS bool
	User      string
	Password  string

	SenderAddress  string
	SubjectPattern string
	DaysBack       int
	TargetWeekday  string

	AllowedExtensions []string
	MaxFileSizeMb     int64
	StagingDir        string

	Database string

	AlbumName       string
	CredentialsFile string
	TokenFile       string

	Schedule string

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		DaysBack:          7,
		TargetWeekday:     "Friday",
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff"},
		MaxFileSizeMb:     50,
		StagingDir:        "./staging",
		Database:          "mailpix.db",
		CredentialsFile:   "credentials.json",
		TokenFile:         "token.json",
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	for i, ext := range config.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.AllowedExtensions[i] = ext
	}

	return config, nil
}

// MaxFileSize is the attachment size ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return c.MaxFileSizeMb * 1024 * 1024
}

// Weekday parses TargetWeekday. The day classification is advisory only, so
// an unknown name falls back to Friday rather than failing the run.
func (c *Config) Weekday() time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), c.TargetWeekday) {
			return d
		}
	}
	return time.Friday
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.ImapHost, "ImapHost must not be empty, set to host:port of the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.User, "User must not be empty, set to username on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Password, "Password must not be empty, set to password of User on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.SenderAddress, "SenderAddress must not be empty, set to the address the photo mails come from"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.SubjectPattern, "SubjectPattern must not be empty, set to the exact subject substring of the photo mails"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.AlbumName, "AlbumName must not be empty, set to the photo library album to upload into"); err != nil {
		return err
	}

	if c.DaysBack <= 0 {
		return fmt.Errorf("DaysBack must be positive, got %d", c.DaysBack)
	}

	if c.MaxFileSizeMb <= 0 {
		return fmt.Errorf("MaxFileSizeMb must be positive, got %d", c.MaxFileSizeMb)
	}

	if len(c.AllowedExtensions) == 0 {
		return errors.New("AllowedExtensions must not be empty, list the image extensions to accept")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
