package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/mmcdole/gofeed"
)

// NewsService pulls recent air quality headlines for a city from the
// Google News RSS search feed.
type NewsService struct {
	parser  *gofeed.Parser
	cfg     *config.Config
	baseURL string
}

func NewNewsService(cfg *config.Config) *NewsService {
	parser := gofeed.NewParser()
	parser.UserAgent = "breathe-backend/1.0"
	return &NewsService{
		parser:  parser,
		cfg:     cfg,
		baseURL: cfg.ExternalServices.NewsFeedBaseURL,
	}
}

// SetBaseURL redirects the feed to a test server.
func (s *NewsService) SetBaseURL(base string) {
	s.baseURL = base
}

// GetCityNews returns up to the configured number of recent headlines
// about air quality in the given city. An unreachable or malformed feed is
// not fatal to a dashboard; the error is still returned so the caller can
// mark the section failed.
func (s *NewsService) GetCityNews(ctx context.Context, city string) ([]types.NewsItem, error) {
	log := logger.GetLogger()

	query := fmt.Sprintf("%s air pollution air quality", city)
	feedURL := fmt.Sprintf("%s/rss/search?q=%s&hl=en-IN&gl=IN&ceid=IN:en",
		s.baseURL, url.QueryEscape(query))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Pipeline.UpstreamTimeoutSeconds)*time.Second)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse news feed for %q: %w", city, err)
	}

	limit := s.cfg.Pipeline.NewsLimit
	items := make([]types.NewsItem, 0, limit)
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		items = append(items, types.NewsItem{
			Title:  cleanHeadline(entry.Title),
			Link:   entry.Link,
			Source: headlineSource(entry),
			Date:   headlineDate(entry),
		})
	}

	log.Debugw("Fetched city news", "city", city, "count", len(items))
	return items, nil
}

// cleanHeadline strips the trailing " - Publisher" suffix Google News
// appends to item titles.
func cleanHeadline(title string) string {
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return strings.TrimSpace(title)
}

func headlineSource(entry *gofeed.Item) string {
	// Use the suffix the title cleanup removed.
	if idx := strings.LastIndex(entry.Title, " - "); idx > 0 {
		return strings.TrimSpace(entry.Title[idx+3:])
	}
	return "Google News"
}

func headlineDate(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.Format("02 Jan 2006")
	}
	return entry.Published
}
