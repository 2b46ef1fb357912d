package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

var ErrAPIKeyNotSet = errors.New("youtube api key not set")

// Discoverer finds the most viewed medium-length videos for a niche.
type Discoverer struct {
	apiKey  string
	apiBase string
	client  *http.Client
	workers int

	attempts   uint
	retryDelay time.Duration
}

type DiscovererOption func(*Discoverer)

func WithAPIBase(u string) DiscovererOption {
	return func(d *Discoverer) { d.apiBase = strings.TrimRight(u, "/") }
}

func WithClient(c *http.Client) DiscovererOption {
	return func(d *Discoverer) { d.client = c }
}

// WithWorkers sets how many videos.list batches are fetched in parallel.
func WithWorkers(n int) DiscovererOption {
	return func(d *Discoverer) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRetry sets how many times a failed read is attempted in total and the
// base delay between attempts. Only rate limiting, server errors and
// transport failures are retried.
func WithRetry(attempts uint, delay time.Duration) DiscovererOption {
	return func(d *Discoverer) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if delay >= 0 {
			d.retryDelay = delay
		}
	}
}

func NewDiscoverer(apiKey string, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		apiKey:     apiKey,
		apiBase:    defaultAPIBase,
		client:     http.DefaultClient,
		workers:    3,
		attempts:   3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Thumbnails struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
		LikeCount string `json:"likeCount"`
	} `json:"statistics"`
}

func (v videoItem) candidate() pipeline.Candidate {
	views, _ := strconv.ParseInt(v.Statistics.ViewCount, 10, 64)
	likes, _ := strconv.ParseInt(v.Statistics.LikeCount, 10, 64)
	return pipeline.Candidate{
		ID:              v.ID,
		Title:           v.Snippet.Title,
		SourceURL:       "https://www.youtube.com/watch?v=" + v.ID,
		DurationSeconds: ParseDuration(v.ContentDetails.Duration),
		Views:           views,
		Likes:           likes,
		ThumbnailURL:    v.Snippet.Thumbnails.High.URL,
	}
}

// Discover returns up to count candidates in search relevance order.
func (d *Discoverer) Discover(ctx context.Context, niche string, count int) ([]pipeline.Candidate, error) {
	if d.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	ids, err := d.search(ctx, niche, count)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no videos found for %q", niche)
	}

	var batches [][]string
	for start := 0; start < len(ids); start += maxPageSize {
		batches = append(batches, ids[start:min(start+maxPageSize, len(ids))])
	}

	results := make([][]videoItem, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, batch := range batches {
		g.Go(func() error {
			items, err := d.videos(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]videoItem, len(ids))
	for _, items := range results {
		for _, it := range items {
			byID[it.ID] = it
		}
	}
	out := make([]pipeline.Candidate, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it.candidate())
		}
	}

	slog.Info("youtube: discovered videos", "niche", niche, "requested", count, "found", len(out))
	return out, nil
}

func (d *Discoverer) search(ctx context.Context, niche string, count int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < count {
		q := url.Values{}
		q.Set("key", d.apiKey)
		q.Set("part", "snippet")
		q.Set("q", niche)
		q.Set("type", "video")
		q.Set("order", "viewCount")
		q.Set("videoDuration", "medium")
		q.Set("relevanceLanguage", "en")
		q.Set("maxResults", strconv.Itoa(min(count-len(ids), maxPageSize)))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var resp searchResponse
		if err := d.get(ctx, "/search", q, &resp); err != nil {
			return nil, fmt.Errorf("search videos: %w", err)
		}
		for _, it := range resp.Items {
			if it.ID.VideoID != "" && len(ids) < count {
				ids = append(ids, it.ID.VideoID)
			}
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (d *Discoverer) videos(ctx context.Context, ids []string) ([]videoItem, error) {
	q := url.Values{}
	q.Set("key", d.apiKey)
	q.Set("part", "snippet,contentDetails,statistics")
	q.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if err := d.get(ctx, "/videos", q, &resp); err != nil {
		return nil, fmt.Errorf("list video details: %w", err)
	}
	return resp.Items, nil
}

func (d *Discoverer) get(ctx context.Context, path string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBase+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			res, err := d.client.Do(req) //nolint:gosec // URL from internal config
			if err != nil {
				return err
			}
			defer func() { _ = res.Body.Close() }()
			return decodeResponse(res, v)
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts),
		retry.Delay(d.retryDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("youtube: retrying request", "path", path, "attempt", n+1, "error", err)
		}),
	)
}
