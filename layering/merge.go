package layering

// MergeLayers composes layers ordered from strongest to weakest, returning a
// new tree that keeps explicit settings from stronger layers while filling any
// missing data from weaker ones.
func MergeLayers(layers ...Node) Node {
	if len(layers) == 0 {
		return Null()
	}

	merged := layers[len(layers)-1].Clone()
	for i := len(layers) - 2; i >= 0; i-- {
		MergeInto(&merged, layers[i])
	}
	return merged
}

// Merge returns base with patch applied. Neither argument is modified.
func Merge(base, patch Node) Node {
	merged := base.Clone()
	MergeInto(&merged, patch)
	return merged
}

// MergeInto applies patch onto dst in place. A mapping patched onto a mapping
// merges key by key; every other combination replaces dst with a copy of
// patch. Sequences are always replaced wholesale, never merged by element.
//
// dst must not share containers with any other tree; values taken from patch
// are cloned before they are stored.
func MergeInto(dst *Node, patch Node) {
	if patch.kind != KindMapping || dst.kind != KindMapping {
		*dst = patch.Clone()
		return
	}

	for _, key := range patch.fields.keys {
		value := patch.fields.values[key]
		existing, ok := dst.fields.values[key]
		if ok && existing.kind == KindMapping && value.kind == KindMapping {
			MergeInto(&existing, value)
			dst.fields.values[key] = existing
			continue
		}
		dst.fields.set(key, value.Clone())
	}
}

// Touches reports whether applying patch would write the value at path, either
// directly or by replacing one of its ancestors wholesale.
func Touches(patch Node, path string) bool {
	if patch.kind != KindMapping {
		return true
	}
	current := patch
	segments := splitPath(path)
	for i, segment := range segments {
		if current.kind != KindMapping {
			return true
		}
		next, ok := current.fields.values[segment]
		if !ok {
			return false
		}
		if i == len(segments)-1 {
			return true
		}
		current = next
	}
	return true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	return append(out, path[start:])
}
