package grpcapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/host"
)

// Message fields.
const (
	fieldService = "service"
	fieldInputs  = "inputs"
	fieldOutputs = "outputs"
)

var ErrBadRequest = errors.New("malformed request")

// StatusReport is the body of a Status reply.
type StatusReport struct {
	Ready    bool          `json:"ready"`
	Services []host.Status `json:"services"`
}

// encodeDatasets writes named datasets as a Struct of split-form datasets.
func encodeDatasets(sets map[string]*dataset.Dataset) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(sets))}
	for name, d := range sets {
		s, err := dataset.ToStruct(d)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		out.Fields[name] = structpb.NewStructValue(s)
	}
	return out, nil
}

func decodeDatasets(s *structpb.Struct) (map[string]*dataset.Dataset, error) {
	sets := make(map[string]*dataset.Dataset, len(s.GetFields()))
	for name, v := range s.GetFields() {
		sv := v.GetStructValue()
		if sv == nil {
			return nil, fmt.Errorf("%w: dataset %q is not an object", ErrBadRequest, name)
		}
		d, err := dataset.FromStruct(sv)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		sets[name] = d
	}
	return sets, nil
}

func newProcessRequest(service string, inputs map[string]*dataset.Dataset) (*structpb.Struct, error) {
	in, err := encodeDatasets(inputs)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldService: structpb.NewStringValue(service),
		fieldInputs:  structpb.NewStructValue(in),
	}}, nil
}

func parseProcessRequest(req *structpb.Struct) (string, map[string]*dataset.Dataset, error) {
	name := req.GetFields()[fieldService].GetStringValue()
	if name == "" {
		return "", nil, fmt.Errorf("%w: %q is required", ErrBadRequest, fieldService)
	}
	in := req.GetFields()[fieldInputs].GetStructValue()
	if in == nil {
		return "", nil, fmt.Errorf("%w: %q must be an object", ErrBadRequest, fieldInputs)
	}
	sets, err := decodeDatasets(in)
	if err != nil {
		return "", nil, err
	}
	return name, sets, nil
}

func newProcessReply(outputs map[string]*dataset.Dataset) (*structpb.Struct, error) {
	out, err := encodeDatasets(outputs)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOutputs: structpb.NewStructValue(out),
	}}, nil
}

func parseProcessReply(reply *structpb.Struct) (map[string]*dataset.Dataset, error) {
	out := reply.GetFields()[fieldOutputs].GetStructValue()
	if out == nil {
		return nil, fmt.Errorf("%w: reply has no %q", ErrBadRequest, fieldOutputs)
	}
	return decodeDatasets(out)
}

func encodeStatus(r StatusReport) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeStatus(s *structpb.Struct) (StatusReport, error) {
	var r StatusReport
	b, err := protojson.Marshal(s)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("decode status: %w", err)
	}
	return r, nil
}
