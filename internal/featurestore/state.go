package featurestore

import (
	"strings"

	"github.com/nmedina/skulens/internal/domain"
)

// State is one immutable version of the feature store: the registered
// products and the case-insensitive name catalog. Analysis runs hold a
// single *State for their whole duration, so every frame of one video is
// matched against the same store version.
type State struct {
	products map[string]domain.Product
	catalog  map[string]string // lowercased name -> product id
	order    []string          // product ids in registration order
	version  string            // archive version this state was committed as
}

// NewState returns an empty store state.
func NewState() *State {
	return &State{
		products: make(map[string]domain.Product),
		catalog:  make(map[string]string),
	}
}

// Version returns the archive version ID this state corresponds to, or ""
// for a state that has never been committed.
func (s *State) Version() string {
	return s.version
}

// Len returns the number of registered products.
func (s *State) Len() int {
	return len(s.products)
}

// Product returns the product with the given id.
func (s *State) Product(id string) (domain.Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// LookupByName resolves a product name to its id, case-insensitively.
// A miss is an expected outcome, not an error.
func (s *State) LookupByName(name string) (string, bool) {
	id, ok := s.catalog[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Products returns all registered products in registration order.
func (s *State) Products() []domain.Product {
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// CatalogNames returns every catalog name paired with its product id.
func (s *State) CatalogNames() map[string]string {
	out := make(map[string]string, len(s.catalog))
	for name, id := range s.catalog {
		out[name] = id
	}
	return out
}

// withProduct returns a copy of the state with p added. When p's name is
// already in the catalog the name resolves to the newer product; the older
// product stays in the store and remains reachable through snapshots.
func (s *State) withProduct(p domain.Product) *State {
	next := &State{
		products: make(map[string]domain.Product, len(s.products)+1),
		catalog:  make(map[string]string, len(s.catalog)+1),
		order:    make([]string, 0, len(s.order)+1),
	}
	for id, existing := range s.products {
		next.products[id] = existing
	}
	for name, id := range s.catalog {
		next.catalog[name] = id
	}
	next.order = append(next.order, s.order...)

	next.products[p.ID] = p
	next.catalog[strings.ToLower(strings.TrimSpace(p.Name))] = p.ID
	next.order = append(next.order, p.ID)
	return next
}

// withVersion returns a shallow copy of the state stamped with the archive
// version it is being committed as.
func (s *State) withVersion(version string) *State {
	next := *s
	next.version = version
	return &next
}

// Records converts the state into catalog mirror rows.
func (s *State) Records() []domain.ProductRecord {
	records := make([]domain.ProductRecord, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		records = append(records, domain.ProductRecord{
			ID:              p.ID,
			Name:            p.Name,
			DescriptorCount: p.Descriptors.Count(),
			CreatedAt:       p.CreatedAt,
		})
	}
	return records
}
