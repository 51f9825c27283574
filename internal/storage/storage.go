package storage

import (
	"log"
	"time"

	"github.com/AronAlan/buyi-picture/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

// Object key prefixes for the three renditions kept per picture.
const (
	KeyPrefixOriginal  = "orig/"
	KeyPrefixThumbnail = "thumb/"
	KeyPrefixWebp      = "webp/"
)

// NewPictureStorage keeps dialing the object store until it answers; the
// service cannot run without it.
func NewPictureStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioPictureStorage {
	success := false
	var client *miniostorage.MinioPictureStorage
	var err error

	for !success {
		log.Println("Connecting to picture storage...")
		client, err = miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to picture storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected picture storage!")
		success = true
	}

	return client
}
