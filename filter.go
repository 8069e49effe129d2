package ubundle

// Filter matches a service registration's property bag. The full LDAP-style
// filter grammar spec §4.5 mentions is explicitly out of scope for the core;
// this is the minimal stand-in implementers plug a richer engine behind —
// anything satisfying Matches works with AddServiceListener.
type Filter interface {
	Matches(props map[string]any) bool
}

// EqualsFilter is the minimal Filter implementation: every key in Want must
// be present in the candidate's properties with an equal value.
type EqualsFilter struct {
	Want map[string]any
}

func (f EqualsFilter) Matches(props map[string]any) bool {
	for k, v := range f.Want {
		pv, ok := props[k]
		if !ok || pv != v {
			return false
		}
	}
	return true
}

// AndFilter matches when every child filter matches.
type AndFilter []Filter

func (f AndFilter) Matches(props map[string]any) bool {
	for _, child := range f {
		if !child.Matches(props) {
			return false
		}
	}
	return true
}
