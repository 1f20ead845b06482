package imaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

const orthancTool = "orthanc"

// OrthancClient stores instances through the Orthanc REST API
type OrthancClient struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector
}

// NewOrthancClient creates a client for the server at baseURL
func NewOrthancClient(baseURL, user, password string, timeout time.Duration, log *logger.Logger, metrics *monitoring.MetricsCollector) *OrthancClient {
	return &OrthancClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
		metrics:  metrics,
	}
}

type storeResponse struct {
	ID          string `json:"ID"`
	ParentStudy string `json:"ParentStudy"`
	Status      string `json:"Status"`
}

// Store uploads one instance and reads back its StudyInstanceUID
func (c *OrthancClient) Store(ctx context.Context, instance io.Reader) (*types.ArchivedStudy, error) {
	start := time.Now()
	study, err := c.store(ctx, instance)
	c.logger.ExternalTool(ctx, orthancTool, time.Since(start).Milliseconds(), err)
	if err != nil {
		c.metrics.RecordExternalToolFailure(orthancTool)
		return nil, err
	}
	return study, nil
}

func (c *OrthancClient) store(ctx context.Context, instance io.Reader) (*types.ArchivedStudy, error) {
	var stored storeResponse
	if err := c.do(ctx, http.MethodPost, "/instances", instance, &stored); err != nil {
		return nil, err
	}
	if stored.ID == "" {
		return nil, types.NewExternalToolError(orthancTool, "failed to upload file or retrieve ID", nil)
	}

	var tags map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/instances/"+stored.ID+"/simplified-tags", nil, &tags); err != nil {
		return nil, err
	}
	uid, _ := tags["StudyInstanceUID"].(string)

	return &types.ArchivedStudy{
		SOPID:            stored.ID,
		StudyInstanceUID: uid,
	}, nil
}

func (c *OrthancClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/dicom")
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewExternalToolError(orthancTool, err.Error(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewExternalToolError(orthancTool, "failed to read response", err)
	}
	if resp.StatusCode >= 300 {
		return types.NewExternalToolError(orthancTool,
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return types.NewExternalToolError(orthancTool, "invalid response from "+path, err)
	}
	return nil
}
