package feed

import "sort"

// Registry holds one Store per feed source.
type Registry struct {
	stores map[string]*Store
	names  []string
}

// NewRegistry builds a store for every config. newPages supplies the page
// client of each source.
func NewRegistry(configs []*Config, newPages func(*Config) PageGetter) *Registry {
	r := &Registry{stores: make(map[string]*Store, len(configs))}
	for _, c := range configs {
		r.stores[c.Name] = NewStore(c, newPages(c))
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)
	return r
}

func (r *Registry) Get(name string) (*Store, bool) {
	s, ok := r.stores[name]
	return s, ok
}

// Stores returns the stores ordered by source name.
func (r *Registry) Stores() []*Store {
	result := make([]*Store, 0, len(r.names))
	for _, name := range r.names {
		result = append(result, r.stores[name])
	}
	return result
}

func (r *Registry) Len() int {
	return len(r.names)
}
