package constraint

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/cache"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/pruner"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region cache-contract
// Cache memoizes ChannelConstraint results. Implementations must be safe for
// concurrent use; a cache never changes what Feasible returns.
type Cache interface {
	Lookup(key cache.Key) (feasible bool, hit bool, err error)
	Store(key cache.Key, feasible bool) error
}

// #endregion cache-contract

// #region options
// Option configures a ChannelConstraint.
type Option func(*ChannelConstraint)

// WithCache memoizes results in c.
func WithCache(c Cache) Option {
	return func(cc *ChannelConstraint) { cc.cache = c }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(cc *ChannelConstraint) {
		if l != nil {
			cc.logger = l
		}
	}
}

// #endregion options

// #region channel-constraint
// ChannelConstraint rejects solutions that would leave a layer with a
// non-positive dimension. Each evaluation prunes a private snapshot of the
// model; the original is never touched.
type ChannelConstraint struct {
	model  model.Model
	pruner pruner.Pruner
	digest string
	cache  Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewChannelConstraint binds the check to an original model and a pruner.
func NewChannelConstraint(m model.Model, p pruner.Pruner, opts ...Option) *ChannelConstraint {
	c := &ChannelConstraint{
		model:  m,
		pruner: p,
		digest: m.Digest(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feasible prunes a copy of the model with s and inspects every weight shape.
func (c *ChannelConstraint) Feasible(s solution.Solution) (bool, error) {
	if c.cache == nil {
		return c.check(s)
	}

	key := cache.Key{Model: c.digest, Pruner: c.pruner.ID(), Solution: s.Key()}
	feasible, hit, err := c.cache.Lookup(key)
	if err != nil {
		c.logger.Warn("cache lookup failed", zap.Stringer("key", key), zap.Error(err))
	} else if hit {
		return feasible, nil
	}

	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		ok, err := c.check(s)
		if err != nil {
			return false, err
		}
		if err := c.cache.Store(key, ok); err != nil {
			c.logger.Warn("cache store failed", zap.Stringer("key", key), zap.Error(err))
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	if shared {
		c.logger.Debug("shared in-flight evaluation", zap.String("solution", s.Key()))
	}
	return v.(bool), nil
}

func (c *ChannelConstraint) check(s solution.Solution) (bool, error) {
	snap, err := model.Acquire(c.model)
	if err != nil {
		return false, fmt.Errorf("channel constraint: %w", err)
	}
	defer snap.Release()

	pruned, err := c.pruner.Prune(snap.Model(), s)
	if err != nil {
		return false, fmt.Errorf("channel constraint: prune: %w", err)
	}
	if pruned == nil {
		return false, fmt.Errorf("channel constraint: pruner %s returned no model", c.pruner.ID())
	}
	snap.Adopt(pruned)

	for _, m := range pruned.Modules() {
		shape, ok := m.Weight()
		if !ok {
			continue
		}
		if !shape.Positive() {
			c.logger.Debug("degenerate layer",
				zap.String("layer", m.Name()),
				zap.Ints("shape", shape),
				zap.String("solution", s.Key()))
			return false, nil
		}
	}
	return true, nil
}

func (c *ChannelConstraint) String() string {
	return "channel(" + c.pruner.ID() + ")"
}

// #endregion channel-constraint
