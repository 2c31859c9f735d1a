package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/sirupsen/logrus"
)

const DefaultDataAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// MetadataClient uses the Data API when a key is configured and falls back to
// scraping the watch page.
type MetadataClient struct {
	httpClient *http.Client
	apiKey     string
	apiBaseURL string
	watchURL   string
	policy     retry.Policy
	logger     *logrus.Entry
}

type MetadataOption func(*MetadataClient)

func WithAPIKey(key string) MetadataOption {
	return func(m *MetadataClient) {
		m.apiKey = strings.TrimSpace(key)
	}
}

func WithDataAPIBaseURL(u string) MetadataOption {
	return func(m *MetadataClient) {
		m.apiBaseURL = u
	}
}

func WithMetadataWatchBaseURL(u string) MetadataOption {
	return func(m *MetadataClient) {
		m.watchURL = u
	}
}

func WithMetadataHTTPClient(c *http.Client) MetadataOption {
	return func(m *MetadataClient) {
		if c != nil {
			m.httpClient = c
		}
	}
}

func WithMetadataRetryPolicy(p retry.Policy) MetadataOption {
	return func(m *MetadataClient) {
		m.policy = p
	}
}

func WithMetadataLogger(l *logrus.Entry) MetadataOption {
	return func(m *MetadataClient) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMetadataClient(opts ...MetadataOption) *MetadataClient {
	m := &MetadataClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBaseURL: DefaultDataAPIBaseURL,
		watchURL:   DefaultWatchBaseURL,
		policy:     retry.DefaultPolicy(),
		logger:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.policy.Logger = m.logger
	return m
}

// FetchMetadata returns the title, channel, publish date, description,
// thumbnails and tags of a video. Failures carry KindMetadataFetchError.
func (m *MetadataClient) FetchMetadata(ctx context.Context, videoID string) (models.VideoMetadata, error) {
	const op = "youtube.FetchMetadata"

	var (
		meta models.VideoMetadata
		err  error
	)
	if m.apiKey != "" {
		meta, err = m.fromDataAPI(ctx, videoID)
	} else {
		meta, err = m.fromWatchPage(ctx, videoID)
	}
	if err != nil {
		return models.VideoMetadata{}, errors.E(errors.KindMetadataFetchError, op, err, "failed to fetch video metadata")
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return meta, nil
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string    `json:"title"`
			ChannelTitle string    `json:"channelTitle"`
			ChannelID    string    `json:"channelId"`
			PublishedAt  time.Time `json:"publishedAt"`
			Description  string    `json:"description"`
			Tags         []string  `json:"tags"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (m *MetadataClient) fromDataAPI(ctx context.Context, videoID string) (models.VideoMetadata, error) {
	const op = "youtube.fromDataAPI"

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", videoID)
	q.Set("key", m.apiKey)
	endpoint := strings.TrimRight(m.apiBaseURL, "/") + "/videos?" + q.Encode()

	resp, err := retry.Do(ctx, m.policy, op, func(ctx context.Context) (videosResponse, error) {
		var out videosResponse
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return out, err
		}
		res, err := m.httpClient.Do(req)
		if err != nil {
			return out, err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return out, &retry.StatusError{StatusCode: res.StatusCode}
		}
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return out, errors.Wrap(err, "decode videos response")
		}
		return out, nil
	})
	if err != nil {
		return models.VideoMetadata{}, err
	}
	if len(resp.Items) == 0 {
		return models.VideoMetadata{}, errors.E(errors.KindVideoUnavailable, op, nil, "video not found")
	}

	s := resp.Items[0].Snippet
	meta := models.VideoMetadata{
		VideoID:      videoID,
		Title:        s.Title,
		ChannelTitle: s.ChannelTitle,
		ChannelID:    s.ChannelID,
		PublishedAt:  s.PublishedAt,
		Description:  s.Description,
		Tags:         s.Tags,
		Thumbnails:   make(map[string]string, len(s.Thumbnails)),
	}
	for size, thumb := range s.Thumbnails {
		meta.Thumbnails[size] = thumb.URL
	}
	return meta, nil
}

func (m *MetadataClient) fromWatchPage(ctx context.Context, videoID string) (models.VideoMetadata, error) {
	const op = "youtube.fromWatchPage"

	page, err := fetchWatchPage(ctx, m.httpClient, m.policy, m.watchURL, videoID)
	if err != nil {
		return models.VideoMetadata{}, err
	}
	if page.player != nil {
		if err := page.player.playabilityError(op); err != nil {
			return models.VideoMetadata{}, err
		}
	}

	doc := page.doc
	meta := models.VideoMetadata{
		VideoID:      videoID,
		Title:        attr(doc, `meta[property="og:title"]`, "content"),
		ChannelTitle: attr(doc, `span[itemprop="author"] link[itemprop="name"]`, "content"),
		ChannelID:    attr(doc, `meta[itemprop="channelId"]`, "content"),
		Description:  attr(doc, `meta[property="og:description"]`, "content"),
	}
	if thumb := attr(doc, `meta[property="og:image"]`, "content"); thumb != "" {
		meta.Thumbnails = map[string]string{"high": thumb}
	}
	if published := attr(doc, `meta[itemprop="datePublished"]`, "content"); published != "" {
		meta.PublishedAt = parseDate(published)
	}
	doc.Find(`meta[property="og:video:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.AttrOr("content", "")); tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	})

	if p := page.player; p != nil {
		d := p.VideoDetails
		meta.Title = firstNonEmpty(meta.Title, d.Title)
		meta.ChannelTitle = firstNonEmpty(meta.ChannelTitle, d.Author)
		meta.ChannelID = firstNonEmpty(meta.ChannelID, d.ChannelID)
		if len(d.Description) > len(meta.Description) {
			meta.Description = d.Description
		}
		if len(meta.Tags) == 0 {
			meta.Tags = d.Keywords
		}
	}

	if meta.Title == "" {
		return models.VideoMetadata{}, errors.E(errors.KindVideoUnavailable, op, nil, "watch page has no title")
	}
	return meta, nil
}

func attr(doc *goquery.Document, selector, name string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr(name, ""))
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
