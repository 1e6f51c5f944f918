package store

// Relation describes one navigable association from a record type to a
// related value, such as a foreign-key-backed link to another table's row.
type Relation[T any] struct {
	// Name is the name the relation is addressed by in inclusion plans and
	// overrides.
	Name string

	// Value returns the related value currently held by rec. It must return
	// an untyped nil when the relation is unpopulated; a typed nil pointer
	// wrapped in an interface is treated as populated.
	Value func(rec T) any
}

// Relations is the registry of every relation a record type has. It is
// declared once per record type, at compile time, and consulted by the store
// to validate inclusion plans and to match override names.
//
// A nil *Relations is a valid registry with no relations.
type Relations[T any] struct {
	names  []string
	byName map[string]Relation[T]
}

// NewRelations creates a registry holding the given relations.
func NewRelations[T any](rels ...Relation[T]) *Relations[T] {
	r := &Relations[T]{
		byName: make(map[string]Relation[T]),
	}
	for _, rel := range rels {
		r.Register(rel)
	}
	return r
}

// Register adds a relation to the registry. Registering a relation with a
// name that is already present replaces the prior one.
func (r *Relations[T]) Register(rel Relation[T]) {
	if _, ok := r.byName[rel.Name]; !ok {
		r.names = append(r.names, rel.Name)
	}
	r.byName[rel.Name] = rel
}

// Lookup returns the relation with the given name, and whether one is
// registered under that name.
func (r *Relations[T]) Lookup(name string) (Relation[T], bool) {
	if r == nil {
		return Relation[T]{}, false
	}
	rel, ok := r.byName[name]
	return rel, ok
}

// Has returns whether a relation with the given name is registered.
func (r *Relations[T]) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the names of all registered relations in registration order.
func (r *Relations[T]) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}
