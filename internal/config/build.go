package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/constraint"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/pruner"
)

// Deps are the collaborators shared by every node of a built tree.
type Deps struct {
	Model  model.Model
	Pruner pruner.Pruner
	Cache  constraint.Cache // optional
	Logger *zap.Logger      // optional
}

// BuildTree combines the top-level constraints into one conjunction.
func (c Config) BuildTree(d Deps) (*constraint.Container, error) {
	children, err := buildAll(c.Constraints, d)
	if err != nil {
		return nil, err
	}
	return constraint.All(children...), nil
}

// Build constructs the constraint s describes.
func (s ConstraintSpec) Build(d Deps) (constraint.Constraint, error) {
	switch s.Type {
	case "all":
		children, err := buildAll(s.Children, d)
		if err != nil {
			return nil, err
		}
		return constraint.All(children...), nil
	case "channel":
		if d.Model == nil || d.Pruner == nil {
			return nil, fmt.Errorf("channel constraint needs a model and a pruner")
		}
		var opts []constraint.Option
		if d.Cache != nil {
			opts = append(opts, constraint.WithCache(d.Cache))
		}
		if d.Logger != nil {
			opts = append(opts, constraint.WithLogger(d.Logger.Named("channel")))
		}
		return constraint.NewChannelConstraint(d.Model, d.Pruner, opts...), nil
	case "l0norm":
		rel, err := constraint.ParseRelation(s.Relation)
		if err != nil {
			return nil, fmt.Errorf("l0norm: %w", err)
		}
		n, err := constraint.NewLZeroNorm(s.Budget, rel)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown constraint type %q", s.Type)
}

func buildAll(specs []ConstraintSpec, d Deps) ([]constraint.Constraint, error) {
	out := make([]constraint.Constraint, 0, len(specs))
	for i, s := range specs {
		c, err := s.Build(d)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s ConstraintSpec) validate() error {
	switch s.Type {
	case "all":
		for i, child := range s.Children {
			if err := child.validate(); err != nil {
				return fmt.Errorf("children[%d]: %w", i, err)
			}
		}
	case "channel":
	case "l0norm":
		if _, err := constraint.ParseRelation(s.Relation); err != nil {
			return fmt.Errorf("l0norm: %w", err)
		}
	default:
		return fmt.Errorf("unknown constraint type %q", s.Type)
	}
	return nil
}
