package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Shape is the wire shape a feature ledger was read in.
type Shape int

const (
	// ShapeEmpty is an empty or unrecognized document.
	ShapeEmpty Shape = iota
	// ShapeList is a bare array of feature records.
	ShapeList
	// ShapeWrapped is an object with a "features" array.
	ShapeWrapped
)

// DecodeFeatures maps both accepted ledger shapes into one feature slice.
// An object without a "features" field decodes to no features.
func DecodeFeatures(data []byte) ([]models.Feature, Shape, error) {
	switch firstByte(data) {
	case '[':
		var features []models.Feature
		if err := json.Unmarshal(data, &features); err != nil {
			return nil, ShapeList, fmt.Errorf("decode feature list: %w", err)
		}
		return features, ShapeList, nil
	case '{':
		var wrapped struct {
			Features []models.Feature `json:"features"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, ShapeWrapped, fmt.Errorf("decode feature ledger: %w", err)
		}
		return wrapped.Features, ShapeWrapped, nil
	case 0, 'n':
		return nil, ShapeEmpty, nil
	default:
		return nil, ShapeEmpty, fmt.Errorf("decode feature ledger: unexpected document")
	}
}

// rawLedger keeps every field of the ledger so a targeted update can be
// written back without dropping data this package does not model.
type rawLedger struct {
	shape   Shape
	top     map[string]json.RawMessage
	records []map[string]json.RawMessage
}

func decodeRaw(data []byte) (*rawLedger, error) {
	raw := &rawLedger{}
	switch firstByte(data) {
	case '[':
		raw.shape = ShapeList
		if err := json.Unmarshal(data, &raw.records); err != nil {
			return nil, fmt.Errorf("decode feature list: %w", err)
		}
	case '{':
		raw.shape = ShapeWrapped
		if err := json.Unmarshal(data, &raw.top); err != nil {
			return nil, fmt.Errorf("decode feature ledger: %w", err)
		}
		if features, ok := raw.top["features"]; ok {
			if err := json.Unmarshal(features, &raw.records); err != nil {
				return nil, fmt.Errorf("decode features field: %w", err)
			}
		}
	default:
		raw.shape = ShapeEmpty
	}
	return raw, nil
}

func (r *rawLedger) encode() ([]byte, error) {
	if r.shape == ShapeList {
		return json.MarshalIndent(r.records, "", "  ")
	}
	if r.top == nil {
		r.top = make(map[string]json.RawMessage)
	}
	records, err := json.Marshal(r.records)
	if err != nil {
		return nil, err
	}
	r.top["features"] = records
	return json.MarshalIndent(r.top, "", "  ")
}
