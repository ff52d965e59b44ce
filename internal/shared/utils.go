package shared

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Constants
const (
	DefaultMaxRetries = 3
	UserAgent         = "albumscan/1.0"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Status, e.Message)
}

// IsRetryableHTTPError checks if an HTTP error should be retried
func IsRetryableHTTPError(err error) bool {
	for err != nil {
		if httpErr, ok := err.(*HTTPError); ok {
			if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
				return true
			}
		}
		if provErr, ok := err.(*ProviderError); ok {
			if provErr.IsTransient() {
				return true
			}
		}
		if unwrapped, ok := err.(interface{ Unwrap() error }); ok {
			err = unwrapped.Unwrap()
		} else {
			break
		}
	}
	return false
}

// RetryWithBackoffForHTTP retries HTTP requests with smart error handling.
func RetryWithBackoffForHTTP(maxRetries int, initialDelay time.Duration, maxDelay time.Duration, fn func() error) error {
	return RetryWithBackoffForHTTPWithDebug(maxRetries, initialDelay, maxDelay, fn, false)
}

// RetryWithBackoffForHTTPWithDebug retries HTTP requests with smart error handling and optional debug logging.
// Non-retryable errors (permanent 4xx, malformed response) are returned immediately without a retry attempt.
func RetryWithBackoffForHTTPWithDebug(maxRetries int, initialDelay time.Duration, maxDelay time.Duration, fn func() error, debug bool) error {
	var lastErr error

	if maxRetries == 0 {
		return fn()
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryableHTTPError(lastErr) {
			return lastErr
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}

		// jitter of +/- 25% of delay
		jitter := time.Duration(rand.Int63n(int64(delay/2))) - delay/4
		finalDelay := delay + jitter
		if finalDelay < 0 {
			finalDelay = delay
		}

		if debug {
			log.Printf("HTTP request failed (attempt %d/%d): %v. Retrying in %v",
				attempt+1, maxRetries, lastErr, finalDelay)
		}

		time.Sleep(finalDelay)
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

var (
	nonAlphanumeric  = regexp.MustCompile(`[^a-z0-9 ]+`)
	collapsibleSpace = regexp.MustCompile(`\s+`)
)

// NormalizeName lowercases a string, strips punctuation, and collapses whitespace.
// Used as the identity key for artist/album matching (spec §3: Artist.name normalization).
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	stripped := nonAlphanumeric.ReplaceAllString(lower, " ")
	return strings.TrimSpace(collapsibleSpace.ReplaceAllString(stripped, " "))
}

var alternateVersionPattern = regexp.MustCompile(
	`(?i)\((?:[^)]*\b(remix|acoustic|live|unplugged|karaoke|instrumental|edit|club mix|demo|cover|re-recorded|rerecorded)\b[^)]*)\)\s*$`,
)

// IsAlternateVersion reports whether a track title's parenthetical suffix marks it
// as an alternate version of a canonical recording (spec §4.4/§4.6).
func IsAlternateVersion(title string) bool {
	return alternateVersionPattern.MatchString(title)
}

// IdToString converts a loosely-typed JSON id field (string or number) to a string.
func IdToString(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
