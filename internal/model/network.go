package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mitchellh/copystructure"
	"gopkg.in/yaml.v3"
)

// #region network
// Layer is one unit of a Network.
type Layer struct {
	Name     string  `yaml:"name"`
	Kind     Kind    `yaml:"kind"`
	Prunable bool    `yaml:"prunable,omitempty"`
	Weight   *Tensor `yaml:"weight,omitempty"`
	Bias     *Tensor `yaml:"bias,omitempty"`
}

// Network is an in-memory sequential model.
type Network struct {
	Name   string   `yaml:"name"`
	Layers []*Layer `yaml:"layers"`
}

// NewNetwork validates the layers and returns a network owning them.
func NewNetwork(name string, layers ...*Layer) (*Network, error) {
	n := &Network{Name: name, Layers: layers}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks layer kinds and tensor sizes.
func (n *Network) Validate() error {
	seen := make(map[string]bool, len(n.Layers))
	for i, l := range n.Layers {
		if l == nil {
			return fmt.Errorf("layer %d is nil", i)
		}
		if l.Name == "" {
			return fmt.Errorf("layer %d has no name", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer name %q", l.Name)
		}
		seen[l.Name] = true
		if !l.Kind.Valid() {
			return fmt.Errorf("layer %q: unknown kind %q", l.Name, l.Kind)
		}
		if l.Prunable && (l.Weight == nil || !l.Kind.Consumes()) {
			return fmt.Errorf("layer %q: only weighted conv2d/linear layers can be prunable", l.Name)
		}
		for _, t := range []*Tensor{l.Weight, l.Bias} {
			if t == nil {
				continue
			}
			if err := t.validate(); err != nil {
				return fmt.Errorf("layer %q: %w", l.Name, err)
			}
		}
	}
	return nil
}

// PrunableCount returns the number of layers a solution must describe.
func (n *Network) PrunableCount() int {
	count := 0
	for _, l := range n.Layers {
		if l.Prunable {
			count++
		}
	}
	return count
}

// #endregion network

// #region model-contract
// Modules returns read-only views over the layers.
func (n *Network) Modules() []Module {
	mods := make([]Module, len(n.Layers))
	for i, l := range n.Layers {
		mods[i] = layerView{l: l}
	}
	return mods
}

// Clone deep-copies the network.
func (n *Network) Clone() (Model, error) {
	cp, err := copystructure.Copy(n.Layers)
	if err != nil {
		return nil, fmt.Errorf("copy layers of %q: %w", n.Name, err)
	}
	layers, _ := cp.([]*Layer)
	return &Network{Name: n.Name, Layers: layers}, nil
}

// Digest hashes names, kinds, shapes and weights.
func (n *Network) Digest() string {
	h := sha256.New()
	writeString(h, n.Name)
	for _, l := range n.Layers {
		writeString(h, l.Name)
		writeString(h, string(l.Kind))
		if l.Prunable {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		writeTensor(h, l.Weight)
		writeTensor(h, l.Bias)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type layerView struct {
	l *Layer
}

func (v layerView) Name() string { return v.l.Name }

func (v layerView) Weight() (Shape, bool) {
	if v.l.Weight == nil {
		return nil, false
	}
	return v.l.Weight.Shape.Clone(), true
}

// #endregion model-contract

// #region decode
// Decode reads a YAML network description.
func Decode(r io.Reader) (*Network, error) {
	var n Network
	if err := yaml.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("network %q: %w", n.Name, err)
	}
	return &n, nil
}

// LoadFile reads a YAML network description from path.
func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open network: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// #endregion decode

// #region helpers
func writeString(w io.Writer, s string) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	w.Write(buf[:])
	io.WriteString(w, s)
}

func writeTensor(w io.Writer, t *Tensor) {
	var buf [8]byte
	if t == nil {
		binary.LittleEndian.PutUint64(buf[:], math.MaxUint64)
		w.Write(buf[:])
		return
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(len(t.Shape)))
	w.Write(buf[:])
	for _, d := range t.Shape {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(d)))
		w.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(len(t.Data)))
	w.Write(buf[:])
	for _, f := range t.Data {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
		w.Write(buf[:4])
	}
}

// #endregion helpers
