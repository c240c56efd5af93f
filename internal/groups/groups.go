// Package groups holds the static category-group configuration: which groups
// exist, whether each one counts as income or expense, and the category labels
// suggested for it.
package groups

import (
	"errors"
	"fmt"
	"strings"

	"gerenciador/internal/core"
)

// Kind is the semantic type of a group.
type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Group describes one category-group.
type Group struct {
	Key               string   `json:"key"`
	Label             string   `json:"label"`
	Kind              Kind     `json:"kind"`
	DefaultCategories []string `json:"default_categories"`
	// Excluded groups are listed but never aggregated or queried.
	Excluded bool `json:"excluded,omitempty"`
}

// Registry is an immutable, ordered set of groups.
type Registry struct {
	groups []Group
	index  map[string]int
}

var (
	ErrDuplicateKey = errors.New("duplicate group key")
	ErrInvalidKind  = errors.New("invalid group kind")
)

// New validates and indexes the given groups, keeping their order.
func New(gs ...Group) (*Registry, error) {
	r := &Registry{
		groups: make([]Group, 0, len(gs)),
		index:  make(map[string]int, len(gs)),
	}
	for _, g := range gs {
		g.Key = strings.TrimSpace(g.Key)
		if g.Key == "" {
			return nil, core.ErrEmptyGroup
		}
		if _, dup := r.index[g.Key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, g.Key)
		}
		if !g.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q for group %s", ErrInvalidKind, g.Kind, g.Key)
		}
		g.DefaultCategories = append([]string(nil), g.DefaultCategories...)
		r.index[g.Key] = len(r.groups)
		r.groups = append(r.groups, g)
	}
	return r, nil
}

// MustNew is New for static configuration; it panics on error.
func MustNew(gs ...Group) *Registry {
	r, err := New(gs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the ledger's built-in groups.
func Default() *Registry {
	return MustNew(
		Group{
			Key:               "receitas",
			Label:             "Receitas",
			Kind:              Income,
			DefaultCategories: []string{"Salário", "Freelance", "Investimentos", "Vendas", "Outros"},
		},
		Group{
			Key:               "contas_fixas",
			Label:             "Contas Fixas",
			Kind:              Expense,
			DefaultCategories: []string{"Moradia", "Transporte", "Saúde", "Educação", "Serviços", "Outros"},
		},
		Group{
			Key:               "contas_variaveis",
			Label:             "Contas Variáveis",
			Kind:              Expense,
			DefaultCategories: []string{"Alimentação", "Lazer", "Compras", "Transporte", "Saúde", "Outros"},
		},
		Group{
			Key:               "cartoes_credito",
			Label:             "Cartões de Crédito",
			Kind:              Expense,
			DefaultCategories: []string{"Compras", "Assinaturas", "Alimentação", "Viagens", "Outros"},
		},
	)
}

// Get returns the group with the given key.
func (r *Registry) Get(key string) (Group, bool) {
	i, ok := r.index[key]
	if !ok {
		return Group{}, false
	}
	return r.copyOf(i), true
}

// Lookup is Get for callers that want an error; excluded groups are rejected
// too, since nothing may read or write through them.
func (r *Registry) Lookup(key string) (Group, error) {
	g, ok := r.Get(key)
	if !ok || g.Excluded {
		return Group{}, fmt.Errorf("%w: %q", core.ErrUnknownGroup, key)
	}
	return g, nil
}

// All returns every group in registry order.
func (r *Registry) All() []Group {
	out := make([]Group, len(r.groups))
	for i := range r.groups {
		out[i] = r.copyOf(i)
	}
	return out
}

// Active returns the non-excluded groups in registry order.
func (r *Registry) Active() []Group {
	out := make([]Group, 0, len(r.groups))
	for i, g := range r.groups {
		if !g.Excluded {
			out = append(out, r.copyOf(i))
		}
	}
	return out
}

// Keys returns the keys of the active groups.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.groups))
	for _, g := range r.groups {
		if !g.Excluded {
			keys = append(keys, g.Key)
		}
	}
	return keys
}

// Kind returns the kind of an active group.
func (r *Registry) Kind(key string) (Kind, bool) {
	i, ok := r.index[key]
	if !ok || r.groups[i].Excluded {
		return "", false
	}
	return r.groups[i].Kind, true
}

// IsIncome reports whether key names an active income group.
func (r *Registry) IsIncome(key string) bool {
	k, ok := r.Kind(key)
	return ok && k == Income
}

// Resolve maps a group selection to active groups in registry order.
// An empty selection means every active group. Duplicates collapse.
func (r *Registry) Resolve(keys []string) ([]Group, error) {
	if len(keys) == 0 {
		return r.Active(), nil
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if _, err := r.Lookup(k); err != nil {
			return nil, err
		}
		want[k] = struct{}{}
	}
	out := make([]Group, 0, len(want))
	for i, g := range r.groups {
		if _, ok := want[g.Key]; ok {
			out = append(out, r.copyOf(i))
		}
	}
	return out, nil
}

func (r *Registry) copyOf(i int) Group {
	g := r.groups[i]
	g.DefaultCategories = append([]string(nil), g.DefaultCategories...)
	return g
}
