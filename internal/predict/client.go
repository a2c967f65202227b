// Package predict calls the remote MSI/MSS inference endpoint.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ulle78/DeepMSI/pkg/models"
)

// UserMessage is the only failure text shown to users.
const UserMessage = "Error making prediction. Please try again."

// DefaultURL is the endpoint used by the reference inference server.
const DefaultURL = "http://localhost:5000/api/predict"

// ErrPredictionFailed wraps every transport, status or decoding failure.
var ErrPredictionFailed = errors.New("prediction failed")

// Config configures a Client.
type Config struct {
	URL             string
	Timeout         time.Duration
	RateLimit       float64 // requests per second across all callers; 0 disables
	BreakerFailures uint32  // consecutive failures that open the breaker; 0 disables
	BreakerTimeout  time.Duration
	Logger          *logrus.Logger
	HTTPClient      *http.Client
}

// Client performs single-attempt prediction requests.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Logger
}

// HealthStatus is the inference server's health report.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type predictResponse struct {
	Class         string             `json:"class"`
	Probability   *float64           `json:"probability"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// NewClient creates a prediction client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		log:        cfg.Logger,
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "inference",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("inference circuit breaker changed state")
			},
		})
	}

	return c
}

// Predict uploads img as multipart field "image" and returns the
// classification. It makes exactly one attempt.
func (c *Client) Predict(ctx context.Context, img models.ImageRef) (*models.PredictionResult, error) {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
		}
	}

	var (
		result *models.PredictionResult
		err    error
	)
	if c.breaker != nil {
		var out interface{}
		out, err = c.breaker.Execute(func() (interface{}, error) {
			return c.doPredict(ctx, img)
		})
		if err == nil {
			result = out.(*models.PredictionResult)
		}
	} else {
		result, err = c.doPredict(ctx, img)
	}

	entry := c.log.WithFields(logrus.Fields{
		"bytes":   len(img.Data),
		"latency": time.Since(start).Round(time.Millisecond).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("prediction failed")
		if errors.Is(err, ErrPredictionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}

	entry.WithFields(logrus.Fields{
		"class":       result.Class,
		"probability": result.Probability,
	}).Info("prediction succeeded")
	return result, nil
}

func (c *Client) doPredict(ctx context.Context, img models.ImageRef) (*models.PredictionResult, error) {
	body, contentType, err := multipartImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request body: %v", ErrPredictionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: inference endpoint returned %s - %s", ErrPredictionFailed, resp.Status, bytes.TrimSpace(msg))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrPredictionFailed, err)
	}

	return toResult(pr)
}

func toResult(pr predictResponse) (*models.PredictionResult, error) {
	class := models.PredictionClass(pr.Class)
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unknown class %q", ErrPredictionFailed, pr.Class)
	}
	if pr.Probability == nil {
		return nil, fmt.Errorf("%w: missing probability", ErrPredictionFailed)
	}

	return &models.PredictionResult{
		Class:         class,
		Probability:   clamp01(*pr.Probability),
		Probabilities: pr.Probabilities,
	}, nil
}

func multipartImage(img models.ImageRef) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="upload` + img.Extension() + `"`},
		"Content-Type":        {img.MIME},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Health queries GET /health on the inference host.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid inference URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference health check returned %s", resp.Status)
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &hs, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
