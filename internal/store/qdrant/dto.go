package qdrant

import (
	"encoding/json"
	"fmt"

	"github.com/nordlys-labs/qfrm/internal/domain/metric"
)

// Wire types for the qdrant REST API. Only the fields the client reads or
// writes are declared; unknown response fields are ignored.

type statusEnvelope struct {
	Status json.RawMessage `json:"status"`
}

// errorText extracts the error string from a qdrant status field, which is
// either the literal "ok" or {"error": "..."}.
func (s statusEnvelope) errorText() string {
	var asString string
	if json.Unmarshal(s.Status, &asString) == nil {
		return ""
	}
	var asObj struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(s.Status, &asObj) == nil {
		return asObj.Error
	}
	return ""
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type describeCollectionResponse struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors vectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
		PointsCount int `json:"points_count"`
	} `json:"result"`
}

type pointPayload struct {
	DocID    string             `json:"doc_id"`
	Content  string             `json:"content"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
}

type upsertPoint struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

type upsertPointsRequest struct {
	Points []upsertPoint `json:"points"`
}

type deletePointsRequest struct {
	Points []string `json:"points"`
}

type searchCondition struct {
	Key   string       `json:"key"`
	Match *matchValue  `json:"match,omitempty"`
	Range *rangeBounds `json:"range,omitempty"`
}

type matchValue struct {
	Value string `json:"value"`
}

type rangeBounds struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

type searchFilter struct {
	Must    []searchCondition `json:"must,omitempty"`
	MustNot []searchCondition `json:"must_not,omitempty"`
}

type searchPointsRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	Filter      *searchFilter `json:"filter,omitempty"`
	WithPayload bool          `json:"with_payload"`
	WithVector  bool          `json:"with_vector"`
}

type searchHit struct {
	ID      string       `json:"id"`
	Score   float64      `json:"score"`
	Payload pointPayload `json:"payload"`
	Vector  []float32    `json:"vector,omitempty"`
}

type searchPointsResponse struct {
	Result []searchHit `json:"result"`
}

// distanceName maps a domain metric to the qdrant distance identifier.
func distanceName(m metric.Metric) (string, error) {
	switch m {
	case metric.Cosine:
		return "Cosine", nil
	case metric.Dot:
		return "Dot", nil
	case metric.Euclid:
		return "Euclid", nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", m)
	}
}

// metricFromDistance maps a qdrant distance identifier back to a domain metric.
func metricFromDistance(name string) (metric.Metric, error) {
	switch name {
	case "Cosine":
		return metric.Cosine, nil
	case "Dot":
		return metric.Dot, nil
	case "Euclid":
		return metric.Euclid, nil
	default:
		return "", fmt.Errorf("unknown qdrant distance %q", name)
	}
}
