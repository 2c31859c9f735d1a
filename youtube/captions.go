package youtube

import (
	"context"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// CaptionClient scrapes caption tracks from the watch page.
type CaptionClient struct {
	httpClient *http.Client
	baseURL    string
	policy     retry.Policy
	logger     *logrus.Entry
}

type CaptionOption func(*CaptionClient)

func WithCaptionHTTPClient(c *http.Client) CaptionOption {
	return func(cc *CaptionClient) {
		if c != nil {
			cc.httpClient = c
		}
	}
}

// WithCaptionBaseURL points the client at a different watch page host.
func WithCaptionBaseURL(url string) CaptionOption {
	return func(cc *CaptionClient) {
		cc.baseURL = url
	}
}

func WithCaptionRetryPolicy(p retry.Policy) CaptionOption {
	return func(cc *CaptionClient) {
		cc.policy = p
	}
}

func WithCaptionLogger(l *logrus.Entry) CaptionOption {
	return func(cc *CaptionClient) {
		if l != nil {
			cc.logger = l
		}
	}
}

func NewCaptionClient(opts ...CaptionOption) *CaptionClient {
	c := &CaptionClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    DefaultWatchBaseURL,
		policy:     retry.DefaultPolicy(),
		logger:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Logger = c.logger
	return c
}

// FetchCaptions returns the caption entries for lang. It returns a
// VideoUnavailable or PrivateVideo error when the video cannot be watched and
// NoCaptionsAvailable when no track exists in that language.
func (c *CaptionClient) FetchCaptions(ctx context.Context, videoID, lang string) ([]models.CaptionEntry, error) {
	const op = "youtube.FetchCaptions"

	page, err := fetchWatchPage(ctx, c.httpClient, c.policy, c.baseURL, videoID)
	if err != nil {
		return nil, err
	}
	if page.player == nil {
		return nil, errors.E(errors.KindNoCaptionsAvailable, op, nil, "player response not found")
	}
	if err := page.player.playabilityError(op); err != nil {
		return nil, err
	}
	if page.player.Captions == nil {
		return nil, errors.E(errors.KindNoCaptionsAvailable, op, nil, "video has no captions")
	}

	track, ok := pickTrack(page.player.Captions.Renderer.CaptionTracks, lang)
	if !ok {
		return nil, errors.E(errors.KindNoCaptionsAvailable, op, nil, "no captions in language "+lang)
	}

	entries, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"language": lang,
		"kind":     track.Kind,
		"entries":  len(entries),
	}).Debug("Captions fetched")
	return entries, nil
}

// pickTrack prefers a manual track over an auto-generated one in the same base language.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	want := baseLanguage(lang)
	var auto *captionTrack
	for i := range tracks {
		if baseLanguage(tracks[i].LanguageCode) != want {
			continue
		}
		if tracks[i].Kind != "asr" {
			return tracks[i], true
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto, true
	}
	return captionTrack{}, false
}

func baseLanguage(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(code))
	}
	base, _ := tag.Base()
	return base.String()
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		T    string `xml:"t,attr"`
		D    string `xml:"d,attr"`
		Body string `xml:",innerxml"`
	} `xml:"body>p"`
}

func (c *CaptionClient) fetchTimedText(ctx context.Context, url string) ([]models.CaptionEntry, error) {
	const op = "youtube.fetchTimedText"

	body, err := retry.Do(ctx, c.policy, op, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &retry.StatusError{StatusCode: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	})
	if err != nil {
		return nil, err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, errors.Wrap(err, "parse timedtext")
	}

	entries := make([]models.CaptionEntry, 0, len(tt.Texts)+len(tt.Paragraphs))
	for _, t := range tt.Texts {
		entries = append(entries, models.CaptionEntry{
			Text:     cleanCaption(t.Body),
			Start:    parseFloat(t.Start),
			Duration: parseFloat(t.Dur),
		})
	}
	for _, p := range tt.Paragraphs {
		entries = append(entries, models.CaptionEntry{
			Text:     cleanCaption(stripTags(p.Body)),
			Start:    parseFloat(p.T) / 1000,
			Duration: parseFloat(p.D) / 1000,
		})
	}
	return entries, nil
}

func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
