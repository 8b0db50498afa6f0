package model

import (
	"time"

	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

// Threshold is a threshold record as stored by the backend.
type Threshold struct {
	ID int64 `json:"id"`
	threshold.Record
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
