package model

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery is the filter and page of the threshold list screen.
type ListQuery struct {
	PipelineID *int64
	ProductID  *int64
	Active     *bool
	Page       int
	Size       int
}

func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: 1, Size: DefaultPageSize}

	var err error
	if q.PipelineID, err = parseOptionalID(values, "pipelineId"); err != nil {
		return q, err
	}
	if q.ProductID, err = parseOptionalID(values, "productId"); err != nil {
		return q, err
	}

	if raw := values.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("invalid active %q: %w", raw, err)
		}
		q.Active = &active
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid page %q: %w", raw, err)
		}
		q.Page = page
	}

	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid size %q: %w", raw, err)
		}
		q.Size = size
	}

	q.normalize()
	return q, nil
}

func (q *ListQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
}

func parseOptionalID(values url.Values, key string) (*int64, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return &id, nil
}

// FilterThresholds keeps the items matching q, ordered by ID.
func FilterThresholds(items []Threshold, q ListQuery) []Threshold {
	out := make([]Threshold, 0, len(items))
	for _, t := range items {
		if q.PipelineID != nil && (t.PipelineID == nil || *t.PipelineID != *q.PipelineID) {
			continue
		}
		if q.ProductID != nil && (t.ProductID == nil || *t.ProductID != *q.ProductID) {
			continue
		}
		if q.Active != nil && (t.Active == nil || *t.Active != *q.Active) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}

type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Count int `json:"count"`
}

// Paginate slices items for a 1-based page. Pages past the end are empty.
func Paginate[T any](items []T, page, size int) Page[T] {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page[T]{
		Items: items[start:end],
		Page:  page,
		Size:  size,
		Count: total,
	}
}
