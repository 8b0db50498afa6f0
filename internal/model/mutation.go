package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mutation is a threshold write addressed to the backend. ThresholdID is 0
// for creates; Payload is empty for deletes.
type Mutation struct {
	ID          string           `json:"id"`
	Op          Op               `json:"op"`
	ThresholdID int64            `json:"threshold_id"`
	Payload     threshold.Record `json:"payload"`
	CreatedAt   time.Time        `json:"created_at"`
}

func NewMutation(op Op, thresholdID int64, payload threshold.Record) *Mutation {
	return &Mutation{
		ID:          uuid.New().String(),
		Op:          op,
		ThresholdID: thresholdID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
}

func (m *Mutation) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationFromJSON(data []byte) (*Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
