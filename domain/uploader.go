// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/uploader.go -package=mocks . Uploader

// AttachResult is the per-token outcome of attaching uploaded bytes to an
// album. The photo library reports success or failure for each token
// individually.
type AttachResult struct {
	Token string
	Error error
}

// Uploader is the photo library the staged files end up in: upload bytes to
// get a token, then attach a batch of tokens to an album.
type Uploader interface {
	EnsureAlbum(title string) (string, error)
	Upload(path string) (string, error)
	Attach(albumId string, tokens []string) ([]AttachResult, error)
}
