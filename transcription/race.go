package transcription

import (
	"context"
	"sync"

	"github.com/nijaru/yt-sentiment/metrics"
	"golang.org/x/sync/errgroup"
)

type raceWin struct {
	lang     string
	text     string
	duration float64
}

// race fetches captions for every language at once. The first non-empty
// result wins and cancels the fetches still in flight. A fatal video error
// is returned only when no language won.
func (a *Acquirer) race(ctx context.Context, videoID string, langs []string, t *trail) (*raceWin, error) {
	if len(langs) == 0 {
		return nil, nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		win      *raceWin
		fatalErr error
	)

	var g errgroup.Group
	g.SetLimit(len(langs))
	for _, lang := range langs {
		g.Go(func() error {
			text, duration, err := a.fetchCaptionText(raceCtx, videoID, lang)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case win != nil:
				t.addf("captions[%s]: cancelled, %s won", lang, win.lang)
			case err == nil && text != "":
				win = &raceWin{lang: lang, text: text, duration: duration}
				t.addf("captions[%s]: ok (race)", lang)
				cancel()
			case isFatalVideoError(err):
				t.addf("captions[%s]: %v", lang, err)
				if fatalErr == nil {
					fatalErr = err
				}
			case err != nil:
				t.addf("captions[%s]: %v", lang, err)
			default:
				t.addf("captions[%s]: empty", lang)
			}
			return nil
		})
	}
	_ = g.Wait()

	if win != nil {
		a.metrics.Inc(metrics.CaptionRaceWins)
		return win, nil
	}
	if fatalErr != nil {
		return nil, fatalErr
	}
	return nil, ctx.Err()
}
