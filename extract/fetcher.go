// SPDX-License-Identifier: GPL-3.0-or-later
package extract

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const FetchTimeout = 30 * time.Second

// HttpImageFetcher implements domain.ImageFetcher with a bounded-timeout
// http client, a single slow photo host must not stall the whole run.
type HttpImageFetcher struct {
	client *http.Client
}

func NewHttpImageFetcher() *HttpImageFetcher {
	return &HttpImageFetcher{
		client: &http.Client{
			Timeout: FetchTimeout,
		},
	}
}

func (hf *HttpImageFetcher) Fetch(url string) ([]byte, error) {
	resp, err := hf.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("could not download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d for image download, expected 2xx", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read image response: %w", err)
	}

	return content, nil
}
