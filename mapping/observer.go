package mapping

// Rule decides whether a cross-cutting observer applies to a mapped type.
//
// With no Type, the rule applies to every type. With a Type it applies only
// to that exact type, or with InstanceOf also to every type declaring Type
// as a supertype. A non-empty Annotation must additionally be present on the
// candidate type.
type Rule struct {
	Type       string
	InstanceOf bool
	Annotation string
}

// Applies evaluates the rule against m.
func (r Rule) Applies(m *Mapper) bool {
	if m == nil {
		return false
	}
	if r.Type != "" {
		if r.InstanceOf {
			if !m.Implements(r.Type) {
				return false
			}
		} else if m.Name() != r.Type {
			return false
		}
	}
	if r.Annotation != "" && !m.HasAnnotation(r.Annotation) {
		return false
	}
	return true
}
