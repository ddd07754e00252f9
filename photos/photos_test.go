// SPDX-License-Identifier: GPL-3.0-or-later
package photos

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mailpix/mailpix/log"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	os.Exit(m.Run())
}

func newTestPhotos(handler http.Handler) (*Photos, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewPhotos(&http.Client{}, server.URL), server
}

func TestEnsureAlbumFindsExisting(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/albums", r.URL.Path)
		json.NewEncoder(w).Encode(albumListResponse{
			Albums: []album{
				{Id: "album-1", Title: "Holidays"},
				{Id: "album-2", Title: "School Photos"},
			},
		})
	}))
	defer server.Close()

	id, err := ph.EnsureAlbum("School Photos")
	assert.NoError(t, err)
	assert.Equal(t, "album-2", id)
}

func TestEnsureAlbumFollowsPaging(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(albumListResponse{
				Albums:        []album{{Id: "album-1", Title: "Holidays"}},
				NextPageToken: "page-2",
			})
			return
		}
		assert.Equal(t, "page-2", r.URL.Query().Get("pageToken"))
		json.NewEncoder(w).Encode(albumListResponse{
			Albums: []album{{Id: "album-2", Title: "School Photos"}},
		})
	}))
	defer server.Close()

	id, err := ph.EnsureAlbum("School Photos")
	assert.NoError(t, err)
	assert.Equal(t, "album-2", id)
}

func TestEnsureAlbumCreatesMissing(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(albumListResponse{})
			return
		}

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/albums", r.URL.Path)

		request := map[string]map[string]string{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "School Photos", request["album"]["title"])

		json.NewEncoder(w).Encode(album{Id: "album-new", Title: "School Photos"})
	}))
	defer server.Close()

	id, err := ph.EnsureAlbum("School Photos")
	assert.NoError(t, err)
	assert.Equal(t, "album-new", id)
}

func TestEnsureAlbumErrorStatus(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	id, err := ph.EnsureAlbum("School Photos")
	assert.Empty(t, id)
	assert.EqualError(t, err, "could not list albums: unexpected status 403, expected 200")
}

func TestUpload(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "photo.jpg")
	assert.NoError(t, os.WriteFile(staged, []byte("imagebytes"), 0644))

	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "raw", r.Header.Get("X-Goog-Upload-Protocol"))
		assert.Equal(t, "photo.jpg", r.Header.Get("X-Goog-Upload-File-Name"))
		fmt.Fprint(w, "token-123")
	}))
	defer server.Close()

	token, err := ph.Upload(staged)
	assert.NoError(t, err)
	assert.Equal(t, "token-123", token)
}

func TestUploadEmptyToken(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "photo.jpg")
	assert.NoError(t, os.WriteFile(staged, []byte("imagebytes"), 0644))

	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	token, err := ph.Upload(staged)
	assert.Empty(t, token)
	assert.EqualError(t, err, "upload of photo.jpg returned an empty token")
}

func TestUploadMissingFile(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an unreadable file")
	}))
	defer server.Close()

	token, err := ph.Upload(filepath.Join(t.TempDir(), "gone.jpg"))
	assert.Empty(t, token)
	assert.Error(t, err)
}

func TestAttachReportsPerItemResults(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mediaItems:batchCreate", r.URL.Path)

		request := map[string]interface{}{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "album-2", request["albumId"])
		assert.Len(t, request["newMediaItems"], 2)

		fmt.Fprint(w, `{
			"newMediaItemResults": [
				{"uploadToken": "token-1", "status": {"message": "Success"}, "mediaItem": {"id": "media-1"}},
				{"uploadToken": "token-2", "status": {"code": 13, "message": "Internal error"}}
			]
		}`)
	}))
	defer server.Close()

	results, err := ph.Attach("album-2", []string{"token-1", "token-2"})
	assert.NoError(t, err)
	assert.Len(t, results, 2)

	assert.Equal(t, "token-1", results[0].Token)
	assert.NoError(t, results[0].Error)

	assert.Equal(t, "token-2", results[1].Token)
	assert.EqualError(t, results[1].Error, "media item creation failed: Internal error")
}

func TestAttachErrorStatus(t *testing.T) {
	ph, server := newTestPhotos(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	results, err := ph.Attach("album-2", []string{"token-1"})
	assert.Nil(t, results)
	assert.EqualError(t, err, "could not attach uploads to album: unexpected status 400, expected 200")
}
