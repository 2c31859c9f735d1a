// Package validation checks user-supplied video references, languages and
// HTTP requests.
package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"golang.org/x/text/language"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

type Validator struct {
	config *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateVideoID checks that id looks like a platform video identifier.
func ValidateVideoID(id string) error {
	const op = "validation.ValidateVideoID"

	if id == "" {
		return errors.InvalidInput(op, nil, "video id is required")
	}
	if !videoIDPattern.MatchString(id) {
		return errors.InvalidInput(op, nil, fmt.Sprintf("invalid video id %q", id))
	}
	return nil
}

// ExtractVideoID accepts a bare id or any common YouTube URL form and
// returns the id.
func ExtractVideoID(input string) (string, error) {
	const op = "validation.ExtractVideoID"

	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.InvalidInput(op, nil, "video id or URL is required")
	}
	if !strings.Contains(input, "/") && !strings.Contains(input, ".") {
		return input, ValidateVideoID(input)
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return "", errors.InvalidInput(op, err, "invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(parsed.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := parsed.Query().Get("v"); v != "" {
			id = v
			break
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) == 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				id = segments[1]
			}
		}
	default:
		return "", errors.InvalidInput(op, nil, "only YouTube URLs are supported")
	}

	if id == "" {
		return "", errors.InvalidInput(op, nil, "YouTube URL must contain a video id")
	}
	if err := ValidateVideoID(id); err != nil {
		return "", err
	}
	return id, nil
}

func firstSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}

// ValidateLanguage normalizes an optional language tag. An empty tag is
// allowed and returned unchanged.
func ValidateLanguage(lang string) (string, error) {
	const op = "validation.ValidateLanguage"

	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "", nil
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", errors.InvalidInput(op, err, fmt.Sprintf("invalid language %q", lang))
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", errors.InvalidInput(op, nil, fmt.Sprintf("unknown language %q", lang))
	}
	return base.String(), nil
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.InvalidInput(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidInput(op, nil, "Content-Type must be application/json")
		}
	}

	if opts.MaxContentLength > 0 && r.ContentLength > opts.MaxContentLength {
		return errors.InvalidInput(op, nil, "Request body too large")
	}

	return nil
}

// DefaultLanguage returns the configured language used when a request names none.
func (v *Validator) DefaultLanguage() string {
	if v.config == nil || v.config.Transcript.DefaultLanguage == "" {
		return "en"
	}
	return v.config.Transcript.DefaultLanguage
}
