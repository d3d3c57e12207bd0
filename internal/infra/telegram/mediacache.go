package telegram

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// mediaCache maps local media paths to Telegram file ids so a photo that
// was already uploaded once is sent by id instead of re-uploaded. Entries
// are keyed by content checksum, so editing the file on disk invalidates
// the cached id.
type mediaCache struct {
	mu      sync.RWMutex
	entries map[string]mediaCacheEntry
}

type mediaCacheEntry struct {
	fileID   string
	checksum string
}

func newMediaCache() *mediaCache {
	return &mediaCache{entries: make(map[string]mediaCacheEntry)}
}

// requestFile returns the upload descriptor for a media path: the cached
// Telegram file id when the file content is unchanged, the local path for
// a fresh upload otherwise. The checksum is returned so the caller can
// remember the uploaded id afterwards.
func (c *mediaCache) requestFile(path string) (tgbotapi.RequestFileData, string, error) {
	checksum, err := checksumFile(path)
	if err != nil {
		return nil, "", err
	}

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()

	if ok && entry.checksum == checksum {
		return tgbotapi.FileID(entry.fileID), checksum, nil
	}
	return tgbotapi.FilePath(path), checksum, nil
}

// remember records the file id Telegram assigned to an uploaded photo.
func (c *mediaCache) remember(path, checksum string, sent *tgbotapi.Message) {
	if len(sent.Photo) == 0 {
		return
	}
	// The last PhotoSize is the largest rendition; its id resends the
	// original quality.
	fileID := sent.Photo[len(sent.Photo)-1].FileID

	c.mu.Lock()
	c.entries[path] = mediaCacheEntry{fileID: fileID, checksum: checksum}
	c.mu.Unlock()
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
