package source

import (
	"fmt"
	"sort"

	"jobmate/ingestion-service/internal/model"
)

// Set is the collection of enabled sources, keyed by name.
type Set map[model.Source]Source

// NewSet indexes sources by name. Duplicate names are an error.
func NewSet(sources ...Source) (Set, error) {
	s := make(Set, len(sources))
	for _, src := range sources {
		if _, dup := s[src.Name()]; dup {
			return nil, fmt.Errorf("source %s registered twice", src.Name())
		}
		s[src.Name()] = src
	}
	return s, nil
}

// Names returns the source names in a stable order.
func (s Set) Names() []model.Source {
	names := make([]model.Source, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
