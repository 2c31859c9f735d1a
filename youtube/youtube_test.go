package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeYouTube struct {
	server     *httptest.Server
	watchHits  atomic.Int32
	status     string
	reason     string
	tracks     []captionTrack
	failFirst  int32
	timedTexts map[string]string
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	f := &fakeYouTube{status: "OK", timedTexts: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if f.watchHits.Add(1) <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, f.page())
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.timedTexts[r.URL.Query().Get("id")])
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeYouTube) addTrack(lang, kind, body string) {
	id := fmt.Sprintf("%s-%s-%d", lang, kind, len(f.tracks))
	f.tracks = append(f.tracks, captionTrack{
		BaseURL:      f.server.URL + "/timedtext?id=" + id,
		LanguageCode: lang,
		Kind:         kind,
	})
	f.timedTexts[id] = body
}

func (f *fakeYouTube) page() string {
	player := map[string]any{
		"playabilityStatus": map[string]any{"status": f.status, "reason": f.reason},
		"videoDetails": map[string]any{
			"videoId":          "abc123",
			"title":            "Player Title",
			"author":           "Player Channel",
			"channelId":        "UC123",
			"keywords":         []string{"rpg", "review"},
			"shortDescription": "A long description from the player response.",
		},
	}
	if len(f.tracks) > 0 {
		player["captions"] = map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{"captionTracks": f.tracks},
		}
	}
	encoded, _ := json.Marshal(player)
	return `<html><head>
<meta property="og:title" content="Great Game Review">
<meta property="og:description" content="short">
<meta property="og:image" content="https://i.ytimg.com/vi/abc123/hq.jpg">
<meta property="og:video:tag" content="rpg">
<meta property="og:video:tag" content="indie">
<meta itemprop="channelId" content="UC999">
<meta itemprop="datePublished" content="2023-05-04">
</head><body>
<span itemprop="author"><link itemprop="name" content="Review Channel"></span>
<script>var ytInitialPlayerResponse = ` + string(encoded) + `;var other = {"x":1};</script>
</body></html>`
}

func testPolicy() retry.Policy {
	return retry.DefaultPolicy().NoWait()
}

func TestFetchCaptionsRequestedLanguage(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.addTrack("es", "asr", `<transcript><text start="0" dur="1">auto</text></transcript>`)
	yt.addTrack("es", "", `<transcript><text start="0" dur="1.5">Hola</text><text start="1.5" dur="1">mundo &amp;amp; amigos</text></transcript>`)

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	entries, err := client.FetchCaptions(context.Background(), "abc123", "es")

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Hola", entries[0].Text)
	assert.Equal(t, "mundo & amigos", entries[1].Text)
	assert.Equal(t, 1.5, entries[1].Start)
}

func TestFetchCaptionsRegionalTrackAndSrv3(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.addTrack("en-US", "asr", `<timedtext><body><p t="0" d="1200">Hello <s>there</s></p></body></timedtext>`)

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	entries, err := client.FetchCaptions(context.Background(), "abc123", "en")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello there", entries[0].Text)
	assert.Equal(t, 1.2, entries[0].Duration)
}

func TestFetchCaptionsMissingLanguage(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.addTrack("fr", "", `<transcript><text>Bonjour</text></transcript>`)

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	_, err := client.FetchCaptions(context.Background(), "abc123", "de")

	assert.True(t, errors.IsKind(err, errors.KindNoCaptionsAvailable))
}

func TestFetchCaptionsPrivateVideoIsNotRetried(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.status = "LOGIN_REQUIRED"
	yt.reason = "This is a private video"

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	_, err := client.FetchCaptions(context.Background(), "abc123", "en")

	assert.True(t, errors.IsKind(err, errors.KindPrivateVideo))
	assert.Equal(t, int32(1), yt.watchHits.Load())
}

func TestFetchCaptionsUnavailable(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.status = "ERROR"
	yt.reason = "Video unavailable"

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	_, err := client.FetchCaptions(context.Background(), "abc123", "en")

	assert.True(t, errors.IsKind(err, errors.KindVideoUnavailable))
}

func TestFetchCaptionsRetriesServerErrors(t *testing.T) {
	yt := newFakeYouTube(t)
	yt.failFirst = 2
	yt.addTrack("en", "", `<transcript><text>ok</text></transcript>`)

	client := NewCaptionClient(WithCaptionBaseURL(yt.server.URL), WithCaptionRetryPolicy(testPolicy()))
	entries, err := client.FetchCaptions(context.Background(), "abc123", "en")

	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(3), yt.watchHits.Load())
}

func TestFetchMetadataFromWatchPage(t *testing.T) {
	yt := newFakeYouTube(t)

	client := NewMetadataClient(WithMetadataWatchBaseURL(yt.server.URL), WithMetadataRetryPolicy(testPolicy()))
	meta, err := client.FetchMetadata(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, "Great Game Review", meta.Title)
	assert.Equal(t, "Review Channel", meta.ChannelTitle)
	assert.Equal(t, "UC999", meta.ChannelID)
	assert.Equal(t, 2023, meta.PublishedAt.Year())
	assert.Equal(t, []string{"rpg", "indie"}, meta.Tags)
	assert.Equal(t, "A long description from the player response.", meta.Description)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/hq.jpg", meta.Thumbnails["high"])
}

func TestFetchMetadataFromDataAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		if r.URL.Query().Get("id") != "abc123" {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":"abc123","snippet":{"title":"API Title","channelTitle":"API Channel",
			"channelId":"UCAPI","publishedAt":"2022-01-02T03:04:05Z","description":"desc",
			"tags":["a","b"],"thumbnails":{"default":{"url":"https://img/default.jpg"}}}}]}`)
	}))
	defer server.Close()

	client := NewMetadataClient(WithAPIKey("secret"), WithDataAPIBaseURL(server.URL), WithMetadataRetryPolicy(testPolicy()))

	meta, err := client.FetchMetadata(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "API Title", meta.Title)
	assert.Equal(t, "UCAPI", meta.ChannelID)
	assert.Equal(t, 2022, meta.PublishedAt.Year())
	assert.Equal(t, "https://img/default.jpg", meta.Thumbnails["default"])

	_, err = client.FetchMetadata(context.Background(), "missing")
	assert.True(t, errors.IsKind(err, errors.KindMetadataFetchError))
}

func TestAudioClientDuration(t *testing.T) {
	client := NewAudioClient("", "", testPolicy(), nil)
	client.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "yt-dlp", name)
		return []byte("630\n"), nil
	}

	minutes, err := client.Duration(context.Background(), CanonicalURL("abc123"))
	require.NoError(t, err)
	assert.Equal(t, 10.5, minutes)
}

func TestAudioClientPrivateVideoNotRetried(t *testing.T) {
	calls := 0
	client := NewAudioClient("", "", testPolicy(), nil)
	client.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte("ERROR: [youtube] abc123: Private video. Sign in"), fmt.Errorf("exit status 1")
	}

	_, err := client.Duration(context.Background(), CanonicalURL("abc123"))
	assert.True(t, errors.IsKind(err, errors.KindPrivateVideo))
	assert.Equal(t, 1, calls)
}

func TestAudioClientRetriesToolFailures(t *testing.T) {
	calls := 0
	client := NewAudioClient("", "", testPolicy(), nil)
	client.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte("HTTP Error 503"), fmt.Errorf("exit status 1")
	}

	_, err := client.Duration(context.Background(), CanonicalURL("abc123"))
	assert.True(t, errors.IsKind(err, errors.KindTranscriptionProviderError))
	assert.Equal(t, 3, calls)
}

func TestAudioClientPermanentToolFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		kind   errors.Kind
	}{
		{"missing binary", "", &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}, errors.KindInternal},
		{"bad flags", "yt-dlp: error: no such option: --bogus", fmt.Errorf("exit status 2"), errors.KindTranscriptionProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := NewAudioClient("", "", testPolicy(), nil)
			client.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
				calls++
				return []byte(tt.output), fmt.Errorf("yt-dlp failed: %w", tt.err)
			}

			_, err := client.Duration(context.Background(), CanonicalURL("abc123"))
			assert.True(t, errors.IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestAudioClientDownloadAndSplit(t *testing.T) {
	dir := t.TempDir()
	client := NewAudioClient("yt-dlp", "ffmpeg", testPolicy(), nil)
	client.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		switch name {
		case "yt-dlp":
			return nil, os.WriteFile(filepath.Join(dir, "audio.mp3"), []byte("audio"), 0o644)
		case "ffmpeg":
			for _, n := range []string{"chunk_002.mp3", "chunk_000.mp3", "chunk_001.mp3"} {
				if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected %s", name)
	}

	path, err := client.Download(context.Background(), CanonicalURL("abc123"), dir, DownloadOptions{MaxDurationMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio.mp3"), path)

	chunks, err := client.Split(context.Background(), path, dir, 600)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "chunk_000.mp3"),
		filepath.Join(dir, "chunk_001.mp3"),
		filepath.Join(dir, "chunk_002.mp3"),
	}, chunks)
}

func TestBalancedObject(t *testing.T) {
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, balancedObject(` = {"a":"}{","b":{"c":1}};var x = {}`))
	assert.Equal(t, "", balancedObject(`no object`))
	assert.Equal(t, "", balancedObject(`{"unterminated":`))
}
