// Package letterboxd reads the film slugs from a user's public diary.
package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/metrics"
)

// Client fetches diary pages over HTTP. It does not retry.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient returns a client for cfg. Zero fields fall back to
// DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchWatched returns the film slugs on user's diary, most recent first,
// reading pages until one has no film links or MaxPages is reached.
// A film logged more than once appears more than once.
func (c *Client) FetchWatched(ctx context.Context, user string) ([]string, error) {
	logger := logging.Ctx(ctx)
	var all []string

	for page := 1; page <= c.cfg.MaxPages; page++ {
		pageURL := c.pageURL(user, page)
		logger.Debug().Int("page", page).Str("url", pageURL).Msg("Fetching diary page")

		slugs, err := c.fetchPage(ctx, pageURL, user)
		if err != nil {
			var se *statusError
			// Past the last page the site answers 404.
			if page > 1 && errors.As(err, &se) && se.code == http.StatusNotFound {
				break
			}
			return nil, err
		}
		if len(slugs) == 0 {
			break
		}

		all = append(all, slugs...)
		logger.Debug().Int("page", page).Int("films", len(slugs)).Int("total", len(all)).Msg("Diary page parsed")
	}

	return all, nil
}

func (c *Client) pageURL(user string, page int) string {
	u := fmt.Sprintf("%s/%s/films/diary/", c.cfg.BaseURL, url.PathEscape(user))
	if page > 1 {
		u += fmt.Sprintf("page/%d/", page)
	}
	return u
}

func (c *Client) fetchPage(ctx context.Context, pageURL, user string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: pageURL, code: resp.StatusCode}
	}

	slugs, err := parseFilmSlugs(resp.Body, user)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFetch, pageURL, err)
	}
	return slugs, nil
}

// parseFilmSlugs collects the slug segment of every anchor whose href
// starts with /{user}/film/, in document order.
func parseFilmSlugs(r io.Reader, user string) ([]string, error) {
	prefix := "/" + strings.ToLower(user) + "/film/"
	var slugs []string

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return slugs, nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if s, ok := filmSlug(string(val), prefix); ok {
						slugs = append(slugs, s)
					}
					break
				}
				if !more {
					break
				}
			}
		}
	}
}

// filmSlug extracts "rocky-ii" from "/user/film/rocky-ii/" or
// "/user/film/rocky-ii/1/".
func filmSlug(href, prefix string) (string, bool) {
	if len(href) < len(prefix) || !strings.EqualFold(href[:len(prefix)], prefix) {
		return "", false
	}
	rest := href[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}
