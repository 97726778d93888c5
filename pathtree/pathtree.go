// Package pathtree implements an ordered trie keyed by path segments.
//
// Every node holds the values attached at its path and its children in
// insertion order. It groups nested filter expressions and plans join paths:
//
//	t := pathtree.New[string]()
//	t.Put([]string{"0", "-", "1"}, "b,eq,2")
//	t.Child("0").Keys() // ["-"]
package pathtree

// Wildcard matches any child key in Match.
const Wildcard = "*"

// Tree is a node of the trie.
type Tree[V any] struct {
	values   []V
	keys     []string
	children map[string]*Tree[V]
}

// New returns an empty tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{children: make(map[string]*Tree[V])}
}

// Values returns the values attached directly to this node.
func (t *Tree[V]) Values() []V { return t.values }

// Keys returns the child keys in insertion order.
func (t *Tree[V]) Keys() []string { return t.keys }

// Child returns the child stored under key, or nil.
func (t *Tree[V]) Child(key string) *Tree[V] { return t.children[key] }

// Has reports if the node has a child under key.
func (t *Tree[V]) Has(key string) bool {
	_, ok := t.children[key]
	return ok
}

// Empty reports if the node has neither values nor children.
func (t *Tree[V]) Empty() bool { return len(t.values) == 0 && len(t.keys) == 0 }

// Put appends value to the node addressed by path, creating nodes on the way.
func (t *Tree[V]) Put(path []string, value V) {
	n := t.node(path)
	n.values = append(n.values, value)
}

// Touch creates the node addressed by path without attaching a value.
func (t *Tree[V]) Touch(path []string) *Tree[V] {
	return t.node(path)
}

func (t *Tree[V]) node(path []string) *Tree[V] {
	n := t
	for _, key := range path {
		c, ok := n.children[key]
		if !ok {
			c = New[V]()
			n.children[key] = c
			n.keys = append(n.keys, key)
		}
		n = c
	}
	return n
}

// Get returns the node addressed by path, or nil.
func (t *Tree[V]) Get(path []string) *Tree[V] {
	n := t
	for _, key := range path {
		if n = n.children[key]; n == nil {
			return nil
		}
	}
	return n
}

// Match returns the values of every node addressed by path, where a
// Wildcard segment matches all children at that depth.
func (t *Tree[V]) Match(path []string) []V {
	if len(path) == 0 {
		return t.values
	}
	key, rest := path[0], path[1:]
	if key == Wildcard {
		var values []V
		for _, k := range t.keys {
			values = append(values, t.children[k].Match(rest)...)
		}
		return values
	}
	c := t.children[key]
	if c == nil {
		return nil
	}
	return c.Match(rest)
}

// Walk visits every node depth-first, parents before children.
func (t *Tree[V]) Walk(fn func(path []string, n *Tree[V])) {
	t.walk(nil, fn)
}

func (t *Tree[V]) walk(path []string, fn func([]string, *Tree[V])) {
	fn(path, t)
	for _, k := range t.keys {
		p := make([]string, len(path), len(path)+1)
		copy(p, path)
		t.children[k].walk(append(p, k), fn)
	}
}

// Fold combines the tree bottom-up: fn receives the node values and the
// folded results of its children in key order.
func Fold[V, R any](t *Tree[V], fn func(values []V, children []R) R) R {
	children := make([]R, 0, len(t.keys))
	for _, k := range t.keys {
		children = append(children, Fold(t.children[k], fn))
	}
	return fn(t.values, children)
}
