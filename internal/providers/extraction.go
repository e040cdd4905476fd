// internal/providers/extraction.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	commonhttp "github.com/SarthakGarg19/social-support-ai/internal/common/http"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
	"github.com/SarthakGarg19/social-support-ai/internal/models"
)

// HTTPExtractionConfig configures the HTTP-backed extraction provider.
type HTTPExtractionConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPExtraction calls an external document extraction service.
type HTTPExtraction struct {
	config HTTPExtractionConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewHTTPExtraction(cfg HTTPExtractionConfig, log logger.Logger) *HTTPExtraction {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	return &HTTPExtraction{
		config: cfg,
		client: commonhttp.NewClient(cfg.MaxRetries),
		logger: log.With(map[string]interface{}{"provider": "extraction"}),
	}
}

type extractRequest struct {
	DocumentID string `json:"documentId"`
	Kind       string `json:"kind"`
	URI        string `json:"uri"`
}

type extractResponse struct {
	Fields []struct {
		Name       string      `json:"name"`
		Value      interface{} `json:"value"`
		Confidence float64     `json:"confidence"`
	} `json:"fields"`
}

func (p *HTTPExtraction) Extract(ctx context.Context, doc models.DocumentRef) ([]models.FieldCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	body, err := json.Marshal(extractRequest{
		DocumentID: doc.ID,
		Kind:       doc.Kind,
		URI:        doc.URI,
	})
	if err != nil {
		return nil, errors.NewExtractionFailedError(doc.ID, err)
	}

	headers := map[string]string{}
	if p.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.config.APIKey
	}

	resp, err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/extract", headers, body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewExtractionTimeoutError(doc.ID)
		}
		return nil, errors.NewExtractionFailedError(doc.ID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return nil, errors.NewDocumentUnreadableError(doc.ID, resp.Status)
	default:
		return nil, errors.NewExtractionFailedError(doc.ID, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var apiResponse extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, errors.NewExtractionFailedError(doc.ID, err)
	}

	candidates := make([]models.FieldCandidate, 0, len(apiResponse.Fields))
	for _, f := range apiResponse.Fields {
		confidence := f.Confidence
		if confidence < 0.0 || confidence > 1.0 {
			confidence = 0.5
		}
		candidates = append(candidates, models.FieldCandidate{
			Field:      f.Name,
			Value:      f.Value,
			DocumentID: doc.ID,
			Confidence: confidence,
		})
	}

	p.logger.Debug("extraction completed", map[string]interface{}{
		"documentId":     doc.ID,
		"candidateCount": len(candidates),
	})

	return candidates, nil
}
