package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
)

const (
	DenseVectorName  = "dense"
	SparseVectorName = "bm25"

	maxErrorBody = 2048
)

// A 500 from qdrant is usually a bad payload rather than an overloaded node.
var classifyQdrantError = resilience.StatusClassifier(
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
)

// passageNamespace scopes deterministic point ids so re-indexing a passage overwrites its point.
var passageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("evidence-retrieval/passage"))

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}

func PointID(passageID string) string {
	return uuid.NewSHA1(passageNamespace, []byte(passageID)).String()
}

func (c *Client) IndexPassages(
	ctx context.Context,
	passages []domain.Passage,
	dense [][]float32,
	sparse []lexical.SparseVector,
) error {
	if len(passages) == 0 {
		return nil
	}
	if len(passages) != len(dense) || len(passages) != len(sparse) {
		return fmt.Errorf("passages/vectors mismatch: %d passages, %d dense, %d sparse", len(passages), len(dense), len(sparse))
	}
	if err := c.ensureCollection(ctx, len(dense[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(passages))
	for i, passage := range passages {
		vectors := map[string]any{DenseVectorName: dense[i]}
		if !sparse[i].Empty() {
			vectors[SparseVectorName] = sparse[i]
		}
		payload := passage.Payload()
		payload["passage_id"] = passage.ID
		points = append(points, point{
			ID:      PointID(passage.ID),
			Vector:  vectors,
			Payload: payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	})
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			DenseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			SparseVectorName: map[string]any{},
		},
	}

	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	if statusErr, ok := resilience.AsStatusError(err); err != nil && !(ok && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	return resilience.WrapTemporary(operation, err, classifyQdrantError)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &resilience.StatusError{
			Backend:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
