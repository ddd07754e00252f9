// SPDX-License-Identifier: GPL-3.0-or-later
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"
	"github.com/mailpix/mailpix/mail"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"
)

// EmbeddedImageExtractor is the fallback for mails that deliver photos as
// <img> tags in the html body instead of file attachments. It scans the html
// for image urls, downloads each one and stages it like an attachment.
type EmbeddedImageExtractor struct {
	fetcher    domain.ImageFetcher
	extensions []string
	maxSize    int64
	stagingDir string

	l *logrus.Logger
}

func NewEmbeddedImageExtractor(fetcher domain.ImageFetcher, allowedExtensions []string, maxSize int64, stagingDir string) *EmbeddedImageExtractor {
	lowered := make([]string, len(allowedExtensions))
	for i, ext := range allowedExtensions {
		lowered[i] = strings.ToLower(ext)
	}

	return &EmbeddedImageExtractor{
		fetcher:    fetcher,
		extensions: lowered,
		maxSize:    maxSize,
		stagingDir: stagingDir,
		l:          log.Logger(log.LOG_EXTRACT),
	}
}

// Extract downloads the images referenced by the mail's html body. Every
// failure skips only the single url, the remaining images are still tried.
func (ee *EmbeddedImageExtractor) Extract(uid uint32, rawMail []byte) []domain.ExtractedFile {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(rawMail))
	if err != nil {
		ee.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("Could not parse mail body, skipping mail")
		return nil
	}

	if envelope.HTML == "" {
		ee.l.WithField("uid", uid).Debug("No html body in mail")
		return nil
	}

	imageUrls := imageSources(envelope.HTML)
	ee.l.WithFields(logrus.Fields{"uid": uid, "images": len(imageUrls)}).Info("Found image urls in html body")

	files := []domain.ExtractedFile{}
	for i, imageUrl := range imageUrls {
		imageUrl = strings.ReplaceAll(imageUrl, "&amp;", "&")

		// Deliberately loose: an allow-listed extension anywhere in the url
		// string counts, photo hosts often append query parameters after the
		// real filename.
		if !ee.looksLikeImage(imageUrl) {
			ee.l.WithFields(logrus.Fields{"uid": uid, "url": imageUrl}).Debug("Skipping non-image url")
			continue
		}

		urlLogger := ee.l.WithFields(logrus.Fields{"uid": uid, "url": imageUrl})

		content, err := ee.fetcher.Fetch(imageUrl)
		if err != nil {
			urlLogger.WithField("error", err).Warn("Could not download image, skipping")
			continue
		}

		size := int64(len(content))
		if size > ee.maxSize {
			urlLogger.WithField("size", size).Warn("Image too large, skipping")
			continue
		}

		name := fmt.Sprintf("%s_%d_%d_%s", time.Now().Format(timestampFormat), uid, i+1, mail.SanitizeFilename(filenameFromUrl(imageUrl, i+1)))
		stagedPath := filepath.Join(ee.stagingDir, name)
		err = writeStaged(stagedPath, content)
		if err != nil {
			urlLogger.WithField("error", err).Error("Could not write image to staging, skipping")
			continue
		}

		urlLogger.WithField("path", stagedPath).Info("Extracted embedded image")
		files = append(
			files,
			domain.ExtractedFile{
				LocalPath: stagedPath,
				Uid:       uid,
				Origin:    domain.OriginEmbedded,
				Size:      size,
			},
		)
	}

	return files
}

func (ee *EmbeddedImageExtractor) looksLikeImage(imageUrl string) bool {
	lowered := strings.ToLower(imageUrl)
	for _, ext := range ee.extensions {
		if strings.Contains(lowered, ext) {
			return true
		}
	}
	return false
}

// imageSources returns the src attribute of every img tag in document order.
func imageSources(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	sources := []string{}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if ok && src != "" {
			sources = append(sources, src)
		}
	})

	return sources
}

func filenameFromUrl(imageUrl string, index int) string {
	fallback := fmt.Sprintf("image_%d.jpg", index)

	parsed, err := url.Parse(imageUrl)
	if err != nil {
		return fallback
	}

	filename := path.Base(parsed.Path)
	if filename == "." || filename == "/" || !strings.Contains(filename, ".") {
		return fallback
	}

	return filename
}
