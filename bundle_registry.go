package ubundle

import (
	"sort"

	"github.com/ubundle/ubundle/registry"
)

// bundleRegistry is the C4 component specialized to bundles: a
// registry.Table[int64, *Bundle] plus ordering helpers the framework needs
// for shutdown (reverse install order) and introspection.
type bundleRegistry struct {
	table *registry.Table[int64, *Bundle]
}

func newBundleRegistry() *bundleRegistry {
	return &bundleRegistry{table: registry.NewTable[int64, *Bundle]()}
}

func (r *bundleRegistry) add(b *Bundle) error {
	if err := r.table.Put(b.id, b, false); err != nil {
		return Duplicate(b.id)
	}
	return nil
}

func (r *bundleRegistry) get(id int64) (*Bundle, error) {
	b, err := r.table.Get(id)
	if err != nil {
		return nil, NotFound(id)
	}
	return b, nil
}

func (r *bundleRegistry) remove(id int64) {
	r.table.Delete(id)
}

// all returns every registered bundle ordered by ascending id.
func (r *bundleRegistry) all() []*Bundle {
	bundles := r.table.Snapshot(func(a, b *Bundle) bool { return a.id < b.id })
	return bundles
}

// allReverse returns every registered bundle ordered by descending id, the
// order StopAllBundles (§4.7) tears bundles down in: most recently
// installed first.
func (r *bundleRegistry) allReverse() []*Bundle {
	bundles := r.all()
	sort.SliceStable(bundles, func(i, j int) bool { return bundles[i].id > bundles[j].id })
	return bundles
}

// inStates returns every bundle currently in any of the given states.
func (r *bundleRegistry) inStates(states BundleState) []*Bundle {
	return r.table.Filter(
		func(b *Bundle) bool { return b.State()&states != 0 },
		func(a, b *Bundle) bool { return a.id < b.id },
	)
}
