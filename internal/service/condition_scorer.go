package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/extract"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// HTTPConditionScorer posts the listing as JSON to an external scoring
// endpoint and reads back a ConditionAssessment.
type HTTPConditionScorer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPConditionScorer(endpoint string, timeout time.Duration) *HTTPConditionScorer {
	return &HTTPConditionScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPConditionScorer) Score(ctx context.Context, listing models.NormalizedListing) (*models.ConditionAssessment, error) {
	body, err := json.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("marshal listing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
		return nil, &apperr.UpstreamTransportError{URL: c.endpoint, Timeout: timeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &apperr.UpstreamTransportError{URL: c.endpoint, StatusCode: resp.StatusCode}
	}

	var assessment models.ConditionAssessment
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&assessment); err != nil {
		return nil, &apperr.UpstreamTransportError{URL: c.endpoint, Err: fmt.Errorf("decode assessment: %w", err)}
	}
	if normalized := extract.NormalizeCondition(assessment.Condition); normalized != "" {
		assessment.Condition = normalized
	}
	return &assessment, nil
}
