package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/model"
)

// ErrNoArticle is returned when a topic search finds nothing
var ErrNoArticle = errors.New("no matching article")

// ContentFetcher pulls plain text for a topic or a page
type ContentFetcher interface {
	SearchTopic(ctx context.Context, topic string) (*Article, error)
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Article is a plain text encyclopedia extract
type Article struct {
	Title   string
	Extract string
}

// ResearchClient fetches Wikipedia extracts and scrapes article pages
type ResearchClient struct {
	httpClient   *http.Client
	wikipediaURL string
	userAgent    string
	maxChars     int
	maxLines     int
}

// NewResearchClient creates a new research client on the shared HTTP client
func NewResearchClient(httpClient *http.Client, cfg *config.ResearchConfig) *ResearchClient {
	return &ResearchClient{
		httpClient:   httpClient,
		wikipediaURL: cfg.WikipediaURL,
		userAgent:    cfg.UserAgent,
		maxChars:     cfg.MaxChars,
		maxLines:     cfg.MaxLines,
	}
}

// SearchTopic finds the best matching Wikipedia article and returns its plain text extract
func (c *ResearchClient) SearchTopic(ctx context.Context, topic string) (*Article, error) {
	search := url.Values{
		"action": {"opensearch"},
		"search": {topic},
		"limit":  {"1"},
		"format": {"json"},
	}
	var found []json.RawMessage
	if err := c.getJSON(ctx, "search", c.wikipediaURL+"?"+search.Encode(), &found); err != nil {
		return nil, err
	}

	var titles []string
	if len(found) > 1 {
		if err := json.Unmarshal(found[1], &titles); err != nil {
			return nil, &model.ProviderError{Provider: "wikipedia", Operation: "search", Err: err}
		}
	}
	if len(titles) == 0 {
		return nil, ErrNoArticle
	}
	title := titles[0]

	query := url.Values{
		"action":          {"query"},
		"titles":          {title},
		"prop":            {"extracts"},
		"explaintext":     {"1"},
		"exsectionformat": {"plain"},
		"exchars":         {strconv.Itoa(c.maxChars)},
		"format":          {"json"},
	}
	var extract struct {
		Query struct {
			Pages map[string]struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, "extract", c.wikipediaURL+"?"+query.Encode(), &extract); err != nil {
		return nil, err
	}

	for _, page := range extract.Query.Pages {
		return &Article{Title: title, Extract: strings.TrimSpace(page.Extract)}, nil
	}
	return &Article{Title: title}, nil
}

// FetchPage downloads an HTML page and extracts its readable text
func (c *ResearchClient) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; "+c.userAgent+")")

	log.Printf("[Research] → GET %s", pageURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &model.ProviderError{Provider: "scraper", Operation: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &model.ProviderError{Provider: "scraper", Operation: "fetch", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", &model.ProviderError{Provider: "scraper", Operation: "parse", Err: err}
	}

	text := ExtractText(doc, c.maxLines)
	log.Printf("[Research] ← %d GET %s (%d chars)", resp.StatusCode, pageURL, len(text))
	return text, nil
}

func (c *ResearchClient) getJSON(ctx context.Context, op, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	log.Printf("[Wikipedia API] → %s %s", op, req.URL.Query().Get("search")+req.URL.Query().Get("titles"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.ProviderError{Provider: "wikipedia", Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.ProviderError{Provider: "wikipedia", Operation: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.ProviderError{Provider: "wikipedia", Operation: op, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(body), 300))}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &model.ProviderError{Provider: "wikipedia", Operation: op, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}

var noiseTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Noscript: true,
}

var inlineTags = map[atom.Atom]bool{
	atom.A:      true,
	atom.Abbr:   true,
	atom.B:      true,
	atom.Code:   true,
	atom.Em:     true,
	atom.I:      true,
	atom.Small:  true,
	atom.Span:   true,
	atom.Strong: true,
	atom.Sub:    true,
	atom.Sup:    true,
}

// ExtractText returns up to maxLines non-empty lines of readable text,
// preferring the <article> or <main> element over the whole body.
func ExtractText(doc *html.Node, maxLines int) string {
	root := findElement(doc, atom.Article)
	if root == nil {
		root = findElement(doc, atom.Main)
	}
	if root == nil {
		root = findElement(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	collectText(root, &sb)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if maxLines > 0 && len(lines) >= maxLines {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if noiseTags[n.DataAtom] {
			return
		}
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, sb)
	}
	if n.Type == html.ElementNode && !inlineTags[n.DataAtom] {
		sb.WriteByte('\n')
	}
}
