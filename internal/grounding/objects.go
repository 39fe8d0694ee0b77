package grounding

import "spgt/internal/pddl"

// childTypes returns every type below t in the hierarchy. The hierarchy
// is assumed to be acyclic.
func (t *Translator) childTypes(typeName string) []string {
	var out []string
	for _, child := range t.typeNames {
		if child == typeName {
			continue
		}
		if t.domain.Types[child] == typeName {
			out = append(out, child)
			out = append(out, t.childTypes(child)...)
		}
	}
	return out
}

// ObjectsOfType returns the names of all objects tagged with typeName or
// one of its descendants, in declaration order.
func (t *Translator) ObjectsOfType(typeName string) []string {
	types := map[string]bool{typeName: true}
	for _, c := range t.childTypes(typeName) {
		types[c] = true
	}

	var out []string
	for _, obj := range t.objects {
		for _, tag := range obj.Types {
			if types[tag] {
				out = append(out, obj.Name)
				break
			}
		}
	}
	return out
}

// objectsOfTerm returns the candidates for a typed parameter: the union of
// the objects of each of its type tags, without duplicates.
func (t *Translator) objectsOfTerm(term pddl.TypedTerm) []string {
	types := term.Types
	if len(types) == 0 {
		types = []string{pddl.RootType}
	}
	seen := make(map[string]bool)
	var out []string
	for _, typ := range types {
		for _, obj := range t.ObjectsOfType(typ) {
			if !seen[obj] {
				seen[obj] = true
				out = append(out, obj)
			}
		}
	}
	return out
}
