package entity

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONB stores a free-form JSON document in a jsonb column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Currency codes accepted on financial registers.
const (
	CurrencyPLN = "PLN"
	CurrencyEUR = "EUR"
	CurrencyUSD = "USD"
)

// Project status
const (
	ProjectStatusDraft  = "draft"
	ProjectStatusActive = "active"
	ProjectStatusClosed = "closed"
)

// Rate units
const (
	RateUnitDay      = "day"
	RateUnitFTEMonth = "fte_month"
)
