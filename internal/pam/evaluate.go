package pam

import "strings"

// matchResource reports whether a resource path matches a permission pattern.
// Patterns are slash-separated; a segment may be the wildcard "*", which
// matches exactly one segment. The bare pattern "*" matches any resource.
func matchResource(pattern, resource string) bool {
	if pattern == resource {
		return true
	}
	if pattern == "*" {
		return true
	}

	pSegs := strings.Split(pattern, "/")
	rSegs := strings.Split(resource, "/")
	if len(pSegs) != len(rSegs) {
		return false
	}
	for i, ps := range pSegs {
		if ps != "*" && ps != rSegs[i] {
			return false
		}
	}
	return true
}

// permissionAllows reports whether a permission grants the given action on
// the given resource under the supplied evaluation context. All conditions
// must hold; a condition whose context attribute is absent fails closed.
func permissionAllows(perm Permission, resource, action string, evalCtx map[string]any) bool {
	if !matchResource(perm.Resource, resource) {
		return false
	}

	actionOK := false
	for _, a := range perm.Actions {
		if a == action || a == "*" {
			actionOK = true
			break
		}
	}
	if !actionOK {
		return false
	}

	for _, cond := range perm.Conditions {
		if !conditionHolds(cond, evalCtx) {
			return false
		}
	}
	return true
}

// conditionHolds evaluates one condition against the caller-supplied context.
func conditionHolds(cond PermissionCondition, evalCtx map[string]any) bool {
	raw, ok := evalCtx[string(cond.Type)]
	if !ok {
		return false
	}
	val, ok := asString(raw)
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		want, ok := asString(cond.Value)
		return ok && val == want
	case OpNotEquals:
		want, ok := asString(cond.Value)
		return ok && val != want
	case OpIn:
		set, ok := asStringSlice(cond.Value)
		return ok && contains(set, val)
	case OpNotIn:
		set, ok := asStringSlice(cond.Value)
		return ok && !contains(set, val)
	default:
		return false
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asStringSlice accepts []string directly and []any as produced by JSON and
// YAML decoding.
func asStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
