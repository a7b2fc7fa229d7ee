// Package lms talks to the Canvas REST API: quiz submission listings and user profiles.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tomnomnom/linkheader"
	"go.uber.org/zap"

	"quizdigest/internal/model"
	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
	"quizdigest/pkg/trace"
)

// StatusError is returned for any non-2xx LMS response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lms %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lms base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: u,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// SubmissionPages yields one page of quiz submissions per LMS call, following
// rel="next" links until none remain. The since filter and page size are only
// sent on the first request; later requests use the link exactly as given.
// Each range over the sequence starts again from the first page.
func (c *Client) SubmissionPages(ctx context.Context, courseID, quizID string, perPage int, since *time.Time) iter.Seq2[[]model.QuizSubmission, error] {
	return func(yield func([]model.QuizSubmission, error) bool) {
		first := c.baseURL.JoinPath("courses", courseID, "quizzes", quizID, "submissions")
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(perPage))
		if since != nil {
			q.Set("submitted_since", since.UTC().Format(time.RFC3339))
		}
		first.RawQuery = q.Encode()

		next := first
		for page := 1; next != nil; page++ {
			var body model.QuizSubmissionPage
			header, err := c.get(ctx, "quiz_submissions", next, &body)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list quiz submissions (page %d): %w", page, err))
				return
			}

			logger.WithTrace(ctx, c.logger).Debug("Fetched quiz submission page",
				zap.Int("page", page),
				zap.Int("count", len(body.QuizSubmissions)),
			)

			if !yield(body.QuizSubmissions, nil) {
				return
			}
			next, err = nextLink(header, next)
			if err != nil {
				yield(nil, fmt.Errorf("invalid pagination link after page %d: %w", page, err))
				return
			}
		}
	}
}

// GetUser fetches a user profile by id.
func (c *Client) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	u := c.baseURL.JoinPath("users", strconv.FormatInt(userID, 10))

	var user model.User
	if _, err := c.get(ctx, "users", u, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) get(ctx context.Context, endpoint string, u *url.URL, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordLMSRequestDuration(endpoint, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RecordLMSRequestDuration(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return resp.Header, nil
}

// nextLink resolves the rel="next" link against the current page URL.
// It returns nil when the response carries no next link.
func nextLink(header http.Header, current *url.URL) (*url.URL, error) {
	links := linkheader.ParseMultiple(header.Values("Link")).FilterByRel("next")
	if len(links) == 0 || links[0].URL == "" {
		return nil, nil
	}
	return current.Parse(links[0].URL)
}
