package pruner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

var (
	// ErrUnsupportedModel is returned when a pruner cannot handle the model's concrete type.
	ErrUnsupportedModel = errors.New("unsupported model type")
	// ErrShapeMismatch is returned when pruned channels cannot be propagated downstream.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// #region interface
// Pruner applies a solution to a model and returns the structurally pruned result.
// Prune may modify the model it is given; callers pass a disposable copy.
type Pruner interface {
	ID() string
	Prune(m model.Model, s solution.Solution) (model.Model, error)
}

// #endregion interface

// #region channel-pruner
// ChannelPruner removes output channels from every prunable layer of a
// *model.Network, lowest L1 norm first. Entry i of the solution is the number
// of channels removed from the i-th prunable layer.
type ChannelPruner struct{}

// NewChannelPruner returns a ChannelPruner.
func NewChannelPruner() *ChannelPruner {
	return &ChannelPruner{}
}

// ID identifies the pruning policy in cache keys.
func (p *ChannelPruner) ID() string { return "channel-l1/v1" }

// Prune rewrites net in place and returns it.
func (p *ChannelPruner) Prune(m model.Model, s solution.Solution) (model.Model, error) {
	net, ok := m.(*model.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedModel, m)
	}
	if want := net.PrunableCount(); s.Len() != want {
		return nil, fmt.Errorf("%w: expected %d entries, got %d", solution.ErrMalformed, want, s.Len())
	}

	idx := 0
	for i, l := range net.Layers {
		if !l.Prunable {
			continue
		}
		remove := s.At(idx)
		idx++

		width := l.Weight.Shape[0]
		if remove > width {
			return nil, fmt.Errorf("%w: layer %q has %d channels, cannot remove %d",
				solution.ErrMalformed, l.Name, width, remove)
		}
		if remove == 0 {
			continue
		}

		keep := rankChannels(l.Weight, width-remove)
		if err := pruneOutputs(l, width, keep); err != nil {
			return nil, err
		}
		if err := propagate(net.Layers[i+1:], width, keep); err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
	}
	return net, nil
}

// #endregion channel-pruner

// #region helpers
// rankChannels returns the k output channels with the largest L1 norm, in
// ascending index order. Shape-only weights keep the first k channels.
func rankChannels(w *model.Tensor, k int) []int {
	width := w.Shape[0]
	order := make([]int, width)
	for i := range order {
		order[i] = i
	}
	if norms := w.RowNorms(); norms != nil {
		sort.SliceStable(order, func(a, b int) bool {
			return norms[order[a]] > norms[order[b]]
		})
	}
	keep := order[:k]
	sort.Ints(keep)
	return keep
}

func pruneOutputs(l *model.Layer, width int, keep []int) error {
	w, err := l.Weight.Select(0, keep)
	if err != nil {
		return fmt.Errorf("layer %q weight: %w", l.Name, err)
	}
	l.Weight = w
	if l.Bias != nil && len(l.Bias.Shape) > 0 && l.Bias.Shape[0] == width {
		b, err := l.Bias.Select(0, keep)
		if err != nil {
			return fmt.Errorf("layer %q bias: %w", l.Name, err)
		}
		l.Bias = b
	}
	return nil
}

// propagate narrows normalisation layers and the next consumer's input axis
// to the kept channels.
func propagate(rest []*model.Layer, width int, keep []int) error {
	for _, l := range rest {
		switch {
		case l.Kind == model.KindBatchNorm:
			if l.Weight == nil {
				continue
			}
			if l.Weight.Shape[0] != width {
				return fmt.Errorf("%w: %q expects %d channels, producer has %d",
					ErrShapeMismatch, l.Name, l.Weight.Shape[0], width)
			}
			if err := pruneOutputs(l, width, keep); err != nil {
				return err
			}
		case l.Kind.Consumes():
			if l.Weight == nil || len(l.Weight.Shape) < 2 {
				return nil
			}
			in := l.Weight.Shape[1]
			cols := keep
			switch {
			case in == width:
			case width > 0 && in%width == 0:
				cols = expandGroups(keep, in/width)
			default:
				return fmt.Errorf("%w: %q reads %d inputs, producer has %d channels",
					ErrShapeMismatch, l.Name, in, width)
			}
			w, err := l.Weight.Select(1, cols)
			if err != nil {
				return fmt.Errorf("layer %q weight: %w", l.Name, err)
			}
			l.Weight = w
			return nil
		}
	}
	return nil
}

// expandGroups maps channel indices to flattened feature indices where each
// channel owns `group` consecutive features.
func expandGroups(keep []int, group int) []int {
	cols := make([]int, 0, len(keep)*group)
	for _, k := range keep {
		for j := 0; j < group; j++ {
			cols = append(cols, k*group+j)
		}
	}
	return cols
}

// #endregion helpers
