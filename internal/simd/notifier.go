package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
)

// NotificationPayload is the JSON body POSTed to a run's callback URL
type NotificationPayload struct {
	Run       *models.Run    `json:"run"`
	Report    *models.Report `json:"report,omitempty"`
	Timestamp int64          `json:"timestamp"` // When notification was sent
}

// Notifier delivers completion callbacks
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier with 3 retries and exponential backoff
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, true),
	}
}

// WithBackoff overrides the retry policy
func (n *Notifier) WithBackoff(maxRetries int, backoff utils.BackoffStrategy) *Notifier {
	n.maxRetries = maxRetries
	n.backoff = backoff
	return n
}

// validateCallbackURL rejects non-HTTP schemes and cloud metadata hosts
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if host == "169.254.169.254" || host == "metadata.google.internal" {
		return ErrMetadataEndpoint
	}
	return nil
}

// Notify sends a notification to the callback URL asynchronously
// This method returns immediately and performs the notification in a goroutine
func (n *Notifier) Notify(callbackURL string, callbackSecret string, rec *RunRecord) {
	if callbackURL == "" {
		return
	}
	if rec == nil || rec.Run == nil {
		logger.Warn("cannot notify: invalid run record", "callback_url", callbackURL)
		return
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		logger.Warn("cannot notify: rejected callback url", "callback_url", callbackURL, "error", err)
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", rec.Run.ID)
	payload := NotificationPayload{
		Run:       rec.Run,
		Report:    rec.Report,
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until pending notifications finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// sendNotification performs the HTTP POST with retries
func (n *Notifier) sendNotification(callbackURL string, callbackSecret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"run_id", payload.Run.ID,
			"error", err)
		return
	}

	err = utils.Retry(context.Background(), n.maxRetries+1, n.backoff, func(attempt int) error {
		err := n.post(callbackURL, callbackSecret, payloadJSON)
		if err != nil {
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"run_id", payload.Run.ID,
				"attempt", attempt+1,
				"error", err)
		}
		return err
	})
	if err != nil {
		logger.Error("failed to send notification after retries",
			"callback_url", callbackURL,
			"run_id", payload.Run.ID,
			"status", payload.Run.Status,
			"max_retries", n.maxRetries,
			"last_error", err)
		return
	}
	logger.Info("notification sent successfully",
		"run_id", payload.Run.ID,
		"status", payload.Run.Status)
}

func (n *Notifier) post(callbackURL, callbackSecret string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "resilience-core/1.0")
	if callbackSecret != "" {
		req.Header.Set("X-Resilience-Callback-Secret", callbackSecret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(bodyBytes))
}
