package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

type queryPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type queryResponse struct {
	Result struct {
		Points []queryPoint `json:"points"`
	} `json:"result"`
}

func (c *Client) SearchDense(
	ctx context.Context,
	vector []float32,
	filter domain.SearchFilter,
	topK int,
) ([]domain.ChannelResult, error) {
	return c.query(ctx, "qdrant.search_dense", vector, DenseVectorName, filter, topK, domain.ChannelSemantic)
}

func (c *Client) SearchSparse(
	ctx context.Context,
	vector lexical.SparseVector,
	filter domain.SearchFilter,
	topK int,
) ([]domain.ChannelResult, error) {
	if vector.Empty() {
		return nil, nil
	}
	return c.query(ctx, "qdrant.search_sparse", vector, SparseVectorName, filter, topK, domain.ChannelLexical)
}

func (c *Client) query(
	ctx context.Context,
	operation string,
	query any,
	using string,
	filter domain.SearchFilter,
	topK int,
	channel domain.Channel,
) ([]domain.ChannelResult, error) {
	reqBody := map[string]any{
		"query":        query,
		"using":        using,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var resp queryResponse
	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	err := c.execute(ctx, operation, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "query "+using)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChannelResult, 0, len(resp.Result.Points))
	for i, p := range resp.Result.Points {
		id := getStringPayload(p.Payload, "passage_id")
		if id == "" {
			id = pointIDString(p.ID)
		}
		delete(p.Payload, "passage_id")
		out = append(out, domain.ChannelResult{
			ID:          id,
			Rank:        i + 1,
			NativeScore: p.Score,
			Channel:     channel,
			Payload:     p.Payload,
		})
	}
	return out, nil
}

func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
