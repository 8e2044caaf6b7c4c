package jsonvalue

// Merge combines source into target without mutating either:
//   - object + object: keys merge recursively, target key order first
//   - array + array: set union, target elements first then new source elements
//   - anything else: source wins
func Merge(target, source Value) Value {
	switch {
	case target.kind == KindObject && source.kind == KindObject:
		return mergeObjects(target, source)
	case target.kind == KindArray && source.kind == KindArray:
		return UnionArrays(target, source)
	default:
		return source.Clone()
	}
}

func mergeObjects(target, source Value) Value {
	out := target.Clone()
	for pair := source.object.Oldest(); pair != nil; pair = pair.Next() {
		if existing, ok := out.object.Get(pair.Key); ok {
			out.object.Set(pair.Key, Merge(existing, pair.Value))
			continue
		}
		out.object.Set(pair.Key, pair.Value.Clone())
	}
	return out
}

// UnionArrays returns the distinct elements of a followed by the distinct
// elements of b not already present, both in first-occurrence order.
func UnionArrays(a, b Value) Value {
	seen := make(map[string]struct{}, a.Len()+b.Len())
	out := Value{kind: KindArray, array: make([]Value, 0, a.Len()+b.Len())}
	for _, src := range [][]Value{a.array, b.array} {
		for _, e := range src {
			key := e.canonical()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.array = append(out.array, e.Clone())
		}
	}
	return out
}
