package qdrant

import "github.com/kirillkom/evidence-retrieval/internal/core/domain"

func buildFilter(filter domain.SearchFilter) map[string]any {
	if filter.Empty() {
		return nil
	}
	must := make([]map[string]any, 0, 3)
	if filter.CaseID != "" {
		must = append(must, map[string]any{
			"key":   "case_id",
			"match": map[string]any{"value": filter.CaseID},
		})
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, kind := range filter.Kinds {
			kinds = append(kinds, string(kind))
		}
		must = append(must, map[string]any{
			"key":   "kind",
			"match": map[string]any{"any": kinds},
		})
	}
	if len(filter.DocumentIDs) > 0 {
		must = append(must, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"any": filter.DocumentIDs},
		})
	}
	return map[string]any{"must": must}
}
