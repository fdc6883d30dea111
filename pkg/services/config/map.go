package config

import "strings"

type mapSource map[string]any

// NewMapSource returns a Source over a nested map, mostly for tests and embedding.
func NewMapSource(values map[string]any) Source {
	return mapSource(values)
}

func (m mapSource) Get(key string, def any) any {
	var current any = map[string]any(m)
	for _, part := range splitKey(key) {
		node, ok := current.(map[string]any)
		if !ok {
			return def
		}
		current, ok = node[part]
		if !ok {
			return def
		}
	}
	if current == nil {
		return def
	}
	return current
}

func splitKey(key string) []string {
	return strings.Split(key, ".")
}

// setPath stores value at the nested path, creating intermediate maps.
func setPath(root map[string]any, path []string, value any) {
	node := root
	for _, part := range path[:len(path)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}
