package ledger

// DeepMerge recursively merges patch into dst in place: nested objects
// merge key-by-key, any other value (including arrays) replaces the
// existing value wholesale. This is the single shared routine used by both
// the reducer and the secondary index projector so correction semantics
// never drift between the two.
func DeepMerge(dst map[string]interface{}, patch map[string]interface{}) {
	for k, v := range patch {
		if vm, ok := v.(map[string]interface{}); ok {
			if dm, ok := dst[k].(map[string]interface{}); ok {
				DeepMerge(dm, vm)
				continue
			}
		}
		dst[k] = v
	}
}

// CloneMap returns a deep copy of m, matching copy.deepcopy in the reducer
// this is grounded on so replayed corrections never mutate the caller's
// in-memory representation of the raw record.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
