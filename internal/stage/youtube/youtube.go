// Package youtube discovers candidate videos through the YouTube Data API v3
// and uploads finished ranking videos to a channel.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

const (
	defaultAPIBase   = "https://www.googleapis.com/youtube/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"
	defaultTokenURL  = "https://oauth2.googleapis.com/token"
	defaultAuthURL   = "https://accounts.google.com/o/oauth2/auth"

	// maxPageSize is the largest maxResults and id batch the API accepts.
	maxPageSize = 50
)

// apiError is the error envelope returned by Google APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-200 answer from a Google API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("youtube returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("youtube returned HTTP %d: %s", e.Code, e.Message)
}

// Temporary reports whether the request may succeed if sent again.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// retryable reports whether a read request failing with err is worth
// repeating: transport failures and temporary API errors. Cancellation,
// client errors and malformed bodies are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func decodeResponse(res *http.Response, v any) error {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		se := &StatusError{Code: res.StatusCode}
		var ae apiError
		if json.Unmarshal(body, &ae) == nil {
			se.Message = ae.Error.Message
		}
		return se
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse youtube response: %w", err)
	}
	return nil
}

var durationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO 8601 duration such as PT1H2M10S to seconds.
// Unparseable input yields 0.
func ParseDuration(s string) int {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}
