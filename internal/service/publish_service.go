package service

import (
	"context"
	"fmt"
	"log"

	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

// Publication holds the public locations of a published episode
type Publication struct {
	WAVURL string
	MP3URL string
}

// PublishService copies finished episodes to object storage and optionally
// transcodes them to MP3 for delivery
type PublishService struct {
	storage   client.StorageClient
	encoder   client.AudioEncoder
	encodeMP3 bool
}

// NewPublishService creates a new publish service. Either client may be nil.
func NewPublishService(storage client.StorageClient, encoder client.AudioEncoder, encodeMP3 bool) *PublishService {
	return &PublishService{
		storage:   storage,
		encoder:   encoder,
		encodeMP3: encodeMP3,
	}
}

// Enabled reports whether publishing is configured
func (s *PublishService) Enabled() bool {
	return s != nil && s.storage != nil
}

// Publish uploads the master track. A failed MP3 transcode is logged and
// leaves MP3URL empty.
func (s *PublishService) Publish(ctx context.Context, jobID, title string, master *model.MasterTrack) (*Publication, error) {
	if !s.Enabled() {
		return nil, nil
	}

	key := fmt.Sprintf("podcasts/%s/%s", jobID, MasterFile)
	wavURL, err := s.storage.UploadFile(ctx, key, master.Path, "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("upload master: %w", err)
	}
	pub := &Publication{WAVURL: wavURL}
	log.Printf("[Publish] uploaded %s", key)

	if !s.encodeMP3 || s.encoder == nil {
		return pub, nil
	}

	resp, err := s.encoder.Encode(ctx, &client.EncodeRequest{
		InputURL:  wavURL,
		Format:    "mp3",
		Quality:   192,
		OutputKey: fmt.Sprintf("podcasts/%s/podcast.mp3", jobID),
		Metadata: map[string]string{
			"title":  title,
			"artist": "Alex & Sam",
		},
	})
	if err != nil {
		log.Printf("[Publish] mp3 encode for %s failed: %v", jobID, err)
		return pub, nil
	}
	pub.MP3URL = resp.OutputURL
	return pub, nil
}
