package store

// Plan declares which relations Get eagerly loads into its results. Relations
// never named by the plan are left at their zero value in every returned
// record; that is the default, not an error.
//
// Use Include to create a Plan, optionally chaining WithRelation:
//
//	store.Include("Course").WithRelation("Instructor")
type Plan struct {
	relations []string
}

// Include creates a Plan that eagerly loads the named relations.
func Include(relations ...string) *Plan {
	p := &Plan{}
	p.relations = append(p.relations, relations...)
	return p
}

// WithRelation adds a relation to the Plan and returns the same Plan for
// chaining.
func (p *Plan) WithRelation(name string) *Plan {
	p.relations = append(p.relations, name)
	return p
}

// Relations returns the names of all relations the Plan loads, in the order
// they were added. A nil Plan has no relations.
func (p *Plan) Relations() []string {
	if p == nil {
		return nil
	}

	names := make([]string, len(p.relations))
	copy(names, p.relations)
	return names
}
