// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/extract.go -package=mocks . ImageFetcher
package domain

type Origin string

const (
	OriginAttachment = Origin("attachment")
	OriginEmbedded   = Origin("embedded_image")
)

// ExtractedFile is a photo written to the staging directory, pending upload.
// The uploader side is expected to delete the file after a successful upload.
type ExtractedFile struct {
	LocalPath string
	Uid       uint32
	Origin    Origin
	Size      int64
}

// MessageSummary is the decoded, classified view of a candidate mail's
// headers. It only lives for the duration of the filtering decision.
type MessageSummary struct {
	Uid         uint32
	Subject     string
	From        string
	Date        string
	MailIdHash  string
	IsTargetDay bool
}

// ImageFetcher retrieves a remote image with a bounded timeout.
type ImageFetcher interface {
	Fetch(url string) ([]byte, error)
}
