package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

type fakeStorage struct {
	key string
	err error
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	return f.UploadFile(ctx, key, "", contentType)
}

func (f *fakeStorage) UploadFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	f.key = key
	if f.err != nil {
		return "", f.err
	}
	return f.GetPublicURL(key), nil
}

func (f *fakeStorage) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

type fakeEncoder struct {
	req *client.EncodeRequest
	err error
}

func (f *fakeEncoder) Encode(ctx context.Context, req *client.EncodeRequest) (*client.EncodeResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &client.EncodeResponse{OutputURL: "https://cdn.example.com/" + req.OutputKey, Format: req.Format}, nil
}

func (f *fakeEncoder) HealthCheck(ctx context.Context) error { return nil }

func TestPublish_Disabled(t *testing.T) {
	pub, err := NewPublishService(nil, nil, true).Publish(context.Background(), "j1", "T", &model.MasterTrack{})
	if err != nil || pub != nil {
		t.Errorf("expected no-op, got %v, %v", pub, err)
	}
}

func TestPublish_UploadAndEncode(t *testing.T) {
	storage := &fakeStorage{}
	enc := &fakeEncoder{}
	pub, err := NewPublishService(storage, enc, true).Publish(context.Background(), "j1", "Tides", &model.MasterTrack{Path: "/tmp/x.wav"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if storage.key != "podcasts/j1/podcast.wav" {
		t.Errorf("unexpected key %s", storage.key)
	}
	if pub.MP3URL != "https://cdn.example.com/podcasts/j1/podcast.mp3" {
		t.Errorf("unexpected mp3 url %s", pub.MP3URL)
	}
	if enc.req.InputURL != pub.WAVURL || enc.req.Metadata["title"] != "Tides" {
		t.Errorf("unexpected encode request %+v", enc.req)
	}
}

func TestPublish_EncodeFailureIsSoft(t *testing.T) {
	pub, err := NewPublishService(&fakeStorage{}, &fakeEncoder{err: errors.New("down")}, true).
		Publish(context.Background(), "j1", "T", &model.MasterTrack{})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if pub.WAVURL == "" || pub.MP3URL != "" {
		t.Errorf("expected wav only, got %+v", pub)
	}
}

func TestPublish_UploadFailure(t *testing.T) {
	if _, err := NewPublishService(&fakeStorage{err: errors.New("denied")}, nil, false).
		Publish(context.Background(), "j1", "T", &model.MasterTrack{}); err == nil {
		t.Error("expected upload error")
	}
}
