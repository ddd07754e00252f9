// SPDX-License-Identifier: GPL-3.0-or-later
package photos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/log"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseUrl = "https://photoslibrary.googleapis.com/v1"

	UploadTimeout = 120 * time.Second
	albumPageSize = 50
)

// Photos talks to a Google-Photos-style library api: upload bytes for a
// token, find or create the target album, attach a batch of tokens to it.
type Photos struct {
	client  *http.Client
	baseUrl string

	l *logrus.Logger
}

// NewPhotos expects an authenticated http client, see Authenticator.
func NewPhotos(client *http.Client, baseUrl string) *Photos {
	client.Timeout = UploadTimeout

	return &Photos{
		client:  client,
		baseUrl: baseUrl,
		l:       log.Logger(log.LOG_PHOTOS),
	}
}

type album struct {
	Id    string `json:"id"`
	Title string `json:"title"`
}

type albumListResponse struct {
	Albums        []album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// EnsureAlbum returns the id of the album with the given title, creating it
// when no album of that name exists yet.
func (ph *Photos) EnsureAlbum(title string) (string, error) {
	pageToken := ""
	for {
		url := fmt.Sprintf("%s/albums?pageSize=%d", ph.baseUrl, albumPageSize)
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}

		resp, err := ph.client.Get(url)
		if err != nil {
			return "", fmt.Errorf("could not list albums: %w", err)
		}

		body, err := readOk(resp)
		if err != nil {
			return "", fmt.Errorf("could not list albums: %w", err)
		}

		listResponse := &albumListResponse{}
		err = json.Unmarshal(body, listResponse)
		if err != nil {
			return "", fmt.Errorf("could not deserialize album list: %w", err)
		}

		for _, a := range listResponse.Albums {
			if a.Title == title {
				ph.l.WithFields(logrus.Fields{"title": title, "id": a.Id}).Debug("Found existing album")
				return a.Id, nil
			}
		}

		pageToken = listResponse.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ph.createAlbum(title)
}

func (ph *Photos) createAlbum(title string) (string, error) {
	request, err := json.Marshal(map[string]interface{}{
		"album": map[string]string{"title": title},
	})
	if err != nil {
		return "", fmt.Errorf("could not serialize album request: %w", err)
	}

	resp, err := ph.client.Post(ph.baseUrl+"/albums", "application/json", bytes.NewReader(request))
	if err != nil {
		return "", fmt.Errorf("could not create album: %w", err)
	}

	body, err := readOk(resp)
	if err != nil {
		return "", fmt.Errorf("could not create album: %w", err)
	}

	created := &album{}
	err = json.Unmarshal(body, created)
	if err != nil {
		return "", fmt.Errorf("could not deserialize created album: %w", err)
	}

	ph.l.WithFields(logrus.Fields{"title": title, "id": created.Id}).Info("Created album")
	return created.Id, nil
}

// Upload sends the raw file bytes and returns the upload token. The token
// only becomes a visible media item once attached to the album.
func (ph *Photos) Upload(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read staged file: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ph.baseUrl+"/uploads", bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("could not create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("X-Goog-Upload-File-Name", filepath.Base(path))

	resp, err := ph.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not upload file: %w", err)
	}

	body, err := readOk(resp)
	if err != nil {
		return "", fmt.Errorf("could not upload file: %w", err)
	}

	token := string(body)
	if token == "" {
		return "", fmt.Errorf("upload of %s returned an empty token", filepath.Base(path))
	}

	ph.l.WithFields(logrus.Fields{"file": filepath.Base(path), "size": len(content)}).Info("Uploaded file")
	return token, nil
}

type batchCreateResponse struct {
	NewMediaItemResults []struct {
		UploadToken string `json:"uploadToken"`
		Status      struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"status"`
		MediaItem *struct {
			Id string `json:"id"`
		} `json:"mediaItem"`
	} `json:"newMediaItemResults"`
}

// Attach turns previously uploaded tokens into media items inside the album.
// The api reports success per token, one failed item does not fail the batch.
func (ph *Photos) Attach(albumId string, tokens []string) ([]domain.AttachResult, error) {
	newMediaItems := make([]map[string]interface{}, len(tokens))
	for i, token := range tokens {
		newMediaItems[i] = map[string]interface{}{
			"simpleMediaItem": map[string]string{"uploadToken": token},
		}
	}

	request, err := json.Marshal(map[string]interface{}{
		"albumId":       albumId,
		"newMediaItems": newMediaItems,
	})
	if err != nil {
		return nil, fmt.Errorf("could not serialize batch create request: %w", err)
	}

	resp, err := ph.client.Post(ph.baseUrl+"/mediaItems:batchCreate", "application/json", bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("could not attach uploads to album: %w", err)
	}

	body, err := readOk(resp)
	if err != nil {
		return nil, fmt.Errorf("could not attach uploads to album: %w", err)
	}

	batchResponse := &batchCreateResponse{}
	err = json.Unmarshal(body, batchResponse)
	if err != nil {
		return nil, fmt.Errorf("could not deserialize batch create response: %w", err)
	}

	results := []domain.AttachResult{}
	for _, item := range batchResponse.NewMediaItemResults {
		result := domain.AttachResult{Token: item.UploadToken}
		if item.MediaItem == nil && item.Status.Message != "Success" {
			result.Error = fmt.Errorf("media item creation failed: %s", item.Status.Message)
		}
		results = append(results, result)
	}

	return results, nil
}

func readOk(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d, expected 200", resp.StatusCode)
	}

	return body, nil
}
