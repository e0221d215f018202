package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// SelectRequest is the decoded form of a Select RPC payload:
//
//	{"entity": "bead", "request": {...filter request...}}
type SelectRequest struct {
	Entity  string          `json:"entity"`
	Request *filter.Request `json:"request,omitempty"`
}

// selectRequestFromProto decodes a Select payload.
func selectRequestFromProto(in *structpb.Struct) (*SelectRequest, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var req SelectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, inputError("invalid select request: " + err.Error())
	}
	if req.Entity == "" {
		return nil, inputError("entity is required")
	}
	return &req, nil
}

// SelectRequestToProto encodes a Select payload.
func SelectRequestToProto(entity string, req *filter.Request) (*structpb.Struct, error) {
	return toStruct(SelectRequest{Entity: entity, Request: req})
}

// pageToProto encodes a result page as {"entity": ..., "count": n, "results": [...]}.
func pageToProto(entity string, page []model.Entity) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"entity":  entity,
		"count":   len(page),
		"results": page,
	})
}

// toStruct round-trips v through JSON so struct tags decide the field names.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
