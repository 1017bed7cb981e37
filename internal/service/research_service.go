package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/podcastgen/api/internal/client"
)

// ResearchService builds the research brief a script is written from
type ResearchService struct {
	fetcher client.ContentFetcher
}

// NewResearchService creates a new research service
func NewResearchService(fetcher client.ContentFetcher) *ResearchService {
	return &ResearchService{fetcher: fetcher}
}

// Research returns a brief for the source URL when given, otherwise for the topic
func (s *ResearchService) Research(ctx context.Context, topic, sourceURL string) (string, error) {
	if sourceURL != "" {
		text, err := s.fetcher.FetchPage(ctx, sourceURL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", sourceURL, err)
		}
		if text == "" {
			return "", fmt.Errorf("fetch %s: page content was empty", sourceURL)
		}
		log.Printf("[Research] extracted %d chars from %s", len(text), sourceURL)
		return fmt.Sprintf("Source: %s\n\n%s", sourceURL, text), nil
	}

	article, err := s.fetcher.SearchTopic(ctx, topic)
	if err != nil {
		if errors.Is(err, client.ErrNoArticle) {
			return "", fmt.Errorf("no Wikipedia article for %q: %w", topic, err)
		}
		return "", fmt.Errorf("wikipedia lookup for %q: %w", topic, err)
	}
	if article.Extract == "" {
		return "", fmt.Errorf("wikipedia extract for %q was empty", article.Title)
	}

	log.Printf("[Research] found article %q (%d chars)", article.Title, len(article.Extract))
	return fmt.Sprintf("Wikipedia: %s\n\n%s", article.Title, article.Extract), nil
}

// BriefPreviewChars bounds the brief echoed back in a job result
const BriefPreviewChars = 500

// BriefPreview shortens a brief for the job result, cutting on a character boundary
func BriefPreview(brief string) string {
	runes := []rune(brief)
	if len(runes) <= BriefPreviewChars {
		return brief
	}
	return string(runes[:BriefPreviewChars]) + "..."
}

// FallbackBrief is the minimal brief used when research fails
func FallbackBrief(topic string) string {
	return fmt.Sprintf("Topic: %s. (Research unavailable, generate from general knowledge.)", topic)
}

// TopicFromURL names a job that was started from a URL only
func TopicFromURL(sourceURL string) string {
	return "Article from " + sourceURL
}
