// Package screener searches OpenAlex for movement-compensation literature
// and filters the results down to papers worth feeding into the graph. The
// three screening stages (field fit, study quality, compensation relevance)
// are keyword and tier tables, so every accepted paper can be traced to the
// rules that admitted it.
package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"kinegraph/internal/config"
	"kinegraph/internal/logging"
)

// userAgent identifies the crawler to the OpenAlex polite pool.
const userAgent = "kinegraph/1.0"

// StatusError is a non-2xx OpenAlex response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openalex returned status %d", e.Code)
}

// retryable reports whether a later attempt could succeed.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Work is the subset of an OpenAlex work record the screener consumes.
type Work struct {
	ID                        string `json:"id"`
	DOI                       string `json:"doi"`
	DisplayName               string `json:"display_name"`
	PublicationYear           int    `json:"publication_year"`
	CitedByCount              int    `json:"cited_by_count"`
	InstitutionsDistinctCount int    `json:"institutions_distinct_count"`

	PrimaryLocation *Location `json:"primary_location"`
	Concepts        []Concept `json:"concepts"`

	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Location is where a work was published.
type Location struct {
	Source *Source `json:"source"`
}

// Source is the venue record inside a location.
type Source struct {
	DisplayName string `json:"display_name"`
}

// Concept is an OpenAlex topic tag with its confidence score.
type Concept struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// JournalName digs the source title out of the primary location.
func (w Work) JournalName() string {
	if w.PrimaryLocation == nil || w.PrimaryLocation.Source == nil {
		return ""
	}
	return w.PrimaryLocation.Source.DisplayName
}

// Abstract restores the plain abstract text from OpenAlex's inverted index
// by placing every word back at its recorded positions.
func (w Work) Abstract() string {
	if len(w.AbstractInvertedIndex) == 0 {
		return ""
	}

	type placed struct {
		pos  int
		word string
	}
	var words []placed
	for word, positions := range w.AbstractInvertedIndex {
		for _, pos := range positions {
			words = append(words, placed{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].pos != words[j].pos {
			return words[i].pos < words[j].pos
		}
		return words[i].word < words[j].word
	})

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}

type listResponse struct {
	Results []Work `json:"results"`
}

// Query describes one works search.
type Query struct {
	// Terms are OR-combined compound search expressions.
	Terms        []string
	FromYear     int
	ToYear       int
	MinCitations int
	PerPage      int
	// MaxResults caps the total across pages; 0 means a single page.
	MaxResults int
}

// DefaultQuery returns the standing compensation-literature search: papers
// since 2010 connecting compensation terminology with physical therapy and
// biomechanics.
func DefaultQuery() Query {
	return Query{
		Terms: []string{
			"compensation AND (physical therapy OR physiotherapy OR rehabilitation)",
			"compensatory AND (biomechanics OR kinesiology)",
			"muscle imbalance AND (movement OR gait)",
			"overactivity AND (weakness OR dysfunction)",
		},
		FromYear:     2010,
		ToYear:       time.Now().Year(),
		MinCitations: 1,
		PerPage:      25,
	}
}

// Client is a rate-limited OpenAlex works client. OpenAlex asks polite-pool
// users for at most ten requests per second and a mailto contact; the
// limiter enforces the former, the query parameter carries the latter.
type Client struct {
	baseURL  string
	mailto   string
	http     *http.Client
	limiter  *rate.Limiter
	maxTries int
	logger   *log.Logger
}

func NewClient(cfg config.ScreenerConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		mailto:   cfg.Mailto,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(10), 1),
		maxTries: 3,
		logger:   logger,
	}
}

// Search runs a works query, following pages until MaxResults records are
// collected or the result set runs out.
func (c *Client) Search(ctx context.Context, q Query) ([]Work, error) {
	perPage := q.PerPage
	if perPage < 1 {
		perPage = 25
	}
	if perPage > 200 {
		perPage = 200
	}
	want := q.MaxResults
	if want <= 0 {
		want = perPage
	}

	var all []Work
	for page := 1; len(all) < want; page++ {
		endpoint, err := c.buildURL(q, perPage, page)
		if err != nil {
			return nil, err
		}
		batch, err := retryWithContext(ctx, c.maxTries, func(ctx context.Context) ([]Work, error) {
			return c.fetch(ctx, endpoint)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search openalex: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			break
		}
	}
	if len(all) > want {
		all = all[:want]
	}
	c.logger.Debug("[OpenAlex] Search complete", "results", len(all))
	return all, nil
}

func (c *Client) buildURL(q Query, perPage, page int) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid openalex base url %q: %w", c.baseURL, err)
	}

	terms := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		terms[i] = "(" + t + ")"
	}

	filters := []string{
		"type:article",
		fmt.Sprintf("from_publication_date:%d-01-01", q.FromYear),
		fmt.Sprintf("to_publication_date:%d-12-31", q.ToYear),
	}
	if q.MinCitations > 0 {
		filters = append(filters, fmt.Sprintf("cited_by_count:>%d", q.MinCitations-1))
	}

	params := url.Values{}
	params.Set("search", strings.Join(terms, " OR "))
	params.Set("filter", strings.Join(filters, ","))
	params.Set("sort", "cited_by_count:desc")
	params.Set("per-page", strconv.Itoa(perPage))
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	params.Set("select", strings.Join([]string{
		"id", "doi", "display_name", "publication_year", "cited_by_count",
		"institutions_distinct_count", "primary_location", "concepts",
		"abstract_inverted_index",
	}, ","))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	base.RawQuery = params.Encode()
	return base.String(), nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]Work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode openalex response: %w", err)
	}
	return decoded.Results, nil
}

// retryWithContext retries fn with doubling backoff until it succeeds, the
// attempts run out, or the error is not worth retrying.
func retryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}

	var zero T
	var lastErr error
	backoff := 250 * time.Millisecond
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return zero, err
		}
		if i < maxTries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}
