// Package youtube fetches captions, metadata and audio for a video.
package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/retry"
)

const (
	DefaultWatchBaseURL = "https://www.youtube.com"
	userAgent           = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	playerMarker        = "ytInitialPlayerResponse"
	maxWatchPageBytes   = 6 << 20
)

// CanonicalURL is the watch URL used as the persistence key for a video.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		VideoID       string   `json:"videoId"`
		Title         string   `json:"title"`
		LengthSeconds string   `json:"lengthSeconds"`
		ChannelID     string   `json:"channelId"`
		Author        string   `json:"author"`
		Keywords      []string `json:"keywords"`
		Description   string   `json:"shortDescription"`
	} `json:"videoDetails"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type watchPage struct {
	doc    *goquery.Document
	player *playerResponse
}

// fetchWatchPage loads the watch page with retries and decodes the embedded
// player response when present.
func fetchWatchPage(ctx context.Context, client *http.Client, policy retry.Policy, baseURL, videoID string) (*watchPage, error) {
	const op = "youtube.fetchWatchPage"

	url := strings.TrimRight(baseURL, "/") + "/watch?v=" + videoID
	body, err := retry.Do(ctx, policy, op, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return "", errors.E(errors.KindVideoUnavailable, op, nil, "video not found")
		}
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return "", &retry.StatusError{StatusCode: resp.StatusCode, Body: string(data)}
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPageBytes))
		if err != nil {
			return "", retry.Transient(err)
		}
		return string(data), nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse watch page")
	}

	page := &watchPage{doc: doc}
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerMarker)
		if idx < 0 {
			return true
		}
		raw := balancedObject(text[idx+len(playerMarker):])
		if raw == "" {
			return true
		}
		var player playerResponse
		if err := json.Unmarshal([]byte(raw), &player); err != nil {
			return true
		}
		page.player = &player
		return false
	})
	return page, nil
}

// playabilityError maps a non-OK playability status to a typed error.
func (p *playerResponse) playabilityError(op string) error {
	status := strings.ToUpper(p.PlayabilityStatus.Status)
	reason := p.PlayabilityStatus.Reason
	switch {
	case status == "" || status == "OK":
		return nil
	case strings.Contains(strings.ToLower(reason), "private"):
		return errors.E(errors.KindPrivateVideo, op, nil, "video is private")
	case status == "LOGIN_REQUIRED":
		return errors.E(errors.KindPrivateVideo, op, nil, "video requires sign-in: "+reason)
	default:
		return errors.E(errors.KindVideoUnavailable, op, nil, "video unavailable: "+strings.TrimSpace(status+" "+reason))
	}
}

// balancedObject returns the first brace-balanced JSON object in s.
func balancedObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
