package sitecontent

// Merge returns current with patch applied. Neither argument is modified.
//
// For every key of patch: an array replaces the stored value; an object is
// merged recursively when the stored value is also an object; anything else,
// null included, replaces the stored value. Keys only present in current are
// kept as they are.
func Merge(current, patch Document) Document {
	return Document(mergeObjects(current, patch))
}

func mergeObjects(current, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}

	for k, pv := range patch {
		if _, isArray := pv.([]interface{}); isArray {
			out[k] = pv
			continue
		}
		patchObj, patchIsObj := asObject(pv)
		if patchIsObj {
			if curObj, ok := asObject(current[k]); ok {
				out[k] = mergeObjects(curObj, patchObj)
				continue
			}
		}
		out[k] = pv
	}
	return out
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return t, true
	}
	return nil, false
}

// TouchedSections lists the top-level sections a patch writes to, sorted.
func TouchedSections(patch Document) []string {
	return patch.Sections()
}
