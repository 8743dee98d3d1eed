package pruner

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// Messages on the pruning service are structpb.Struct values:
//
//	request:  {"network": <network>, "solution": [int...]}
//	response: {"network": <network>}
//	network:  {"name": str, "layers": [{"name", "kind", "prunable", "weight": [dims], "bias": [dims]}]}
//
// Only shapes travel over the wire; the service holds the weights.

// #region encode
func encodeRequest(net *model.Network, s solution.Solution) (*structpb.Struct, error) {
	entries := make([]any, s.Len())
	for i := range entries {
		entries[i] = s.At(i)
	}
	req, err := structpb.NewStruct(map[string]any{
		"network":  networkFields(net),
		"solution": entries,
	})
	if err != nil {
		return nil, fmt.Errorf("encode prune request: %w", err)
	}
	return req, nil
}

func encodeResponse(net *model.Network) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{"network": networkFields(net)})
	if err != nil {
		return nil, fmt.Errorf("encode prune response: %w", err)
	}
	return resp, nil
}

func networkFields(net *model.Network) map[string]any {
	layers := make([]any, len(net.Layers))
	for i, l := range net.Layers {
		fields := map[string]any{
			"name":     l.Name,
			"kind":     string(l.Kind),
			"prunable": l.Prunable,
		}
		if l.Weight != nil {
			fields["weight"] = dims(l.Weight.Shape)
		}
		if l.Bias != nil {
			fields["bias"] = dims(l.Bias.Shape)
		}
		layers[i] = fields
	}
	return map[string]any{"name": net.Name, "layers": layers}
}

func dims(s model.Shape) []any {
	out := make([]any, len(s))
	for i, d := range s {
		out[i] = d
	}
	return out
}

// #endregion encode

// #region decode
func decodeRequest(req *structpb.Struct) (*model.Network, solution.Solution, error) {
	net, err := decodeNetwork(req.GetFields()["network"].GetStructValue())
	if err != nil {
		return nil, solution.Solution{}, err
	}
	entries, err := decodeInts(req.GetFields()["solution"])
	if err != nil {
		return nil, solution.Solution{}, fmt.Errorf("%w: %v", solution.ErrMalformed, err)
	}
	s, err := solution.New(entries...)
	if err != nil {
		return nil, solution.Solution{}, err
	}
	return net, s, nil
}

func decodeResponse(resp *structpb.Struct) (*model.Network, error) {
	return decodeNetwork(resp.GetFields()["network"].GetStructValue())
}

func decodeNetwork(st *structpb.Struct) (*model.Network, error) {
	if st == nil {
		return nil, fmt.Errorf("decode network: missing network")
	}
	f := st.GetFields()
	net := &model.Network{Name: f["name"].GetStringValue()}
	for i, v := range f["layers"].GetListValue().GetValues() {
		lf := v.GetStructValue().GetFields()
		if lf == nil {
			return nil, fmt.Errorf("decode network: layer %d is not an object", i)
		}
		l := &model.Layer{
			Name:     lf["name"].GetStringValue(),
			Kind:     model.Kind(lf["kind"].GetStringValue()),
			Prunable: lf["prunable"].GetBoolValue(),
		}
		if w, ok := lf["weight"]; ok {
			shape, err := decodeInts(w)
			if err != nil {
				return nil, fmt.Errorf("decode network: layer %q weight: %w", l.Name, err)
			}
			l.Weight = &model.Tensor{Shape: shape}
		}
		if b, ok := lf["bias"]; ok {
			shape, err := decodeInts(b)
			if err != nil {
				return nil, fmt.Errorf("decode network: layer %q bias: %w", l.Name, err)
			}
			l.Bias = &model.Tensor{Shape: shape}
		}
		net.Layers = append(net.Layers, l)
	}
	return net, nil
}

func decodeInts(v *structpb.Value) ([]int, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("expected a list")
	}
	out := make([]int, len(list.GetValues()))
	for i, item := range list.GetValues() {
		num, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		if num.NumberValue != math.Trunc(num.NumberValue) || math.Abs(num.NumberValue) > math.MaxInt32 {
			return nil, fmt.Errorf("element %d is not an integer: %v", i, num.NumberValue)
		}
		out[i] = int(num.NumberValue)
	}
	return out, nil
}

// #endregion decode
