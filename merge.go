package unimodel

import "fmt"

// MergeFields combines two independently built field lists. Fields are
// matched by name; a match is legal when tag, wire name and identifier agree,
// or when the field to merge has no tag yet. The merged definition wins and
// inherits the original tag. Illegal matches fail with FieldMergeError unless
// overwrite is set. Unmatched fields are appended in order.
//
// Every original field must already carry a tag.
func MergeFields(original, toMerge []*Field, overwrite bool) ([]*Field, error) {
	out := make([]*Field, 0, len(original)+len(toMerge))
	pos := make(map[string]int, len(original))
	for _, f := range original {
		if !f.HasTag() {
			return nil, fmt.Errorf("unimodel: merge: original field %s has no tag", f.Name)
		}
		pos[f.Name] = len(out)
		out = append(out, f)
	}
	for _, m := range toMerge {
		i, ok := pos[m.Name]
		if !ok {
			pos[m.Name] = len(out)
			out = append(out, m)
			continue
		}
		o := out[i]
		if !mergeable(o, m) && !overwrite {
			return nil, &FieldMergeError{Original: o, Merge: m}
		}
		c := m.clone()
		if !c.HasTag() {
			c.Tag = o.Tag
		}
		out[i] = c
	}
	return out, nil
}

func mergeable(o, m *Field) bool {
	if m.HasTag() && m.Tag != o.Tag {
		return false
	}
	return o.Name == m.Name && o.Wire() == m.Wire()
}
