package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// maxWalkDepth bounds tree walks. Definitions are acyclic, the cap only
// protects against pathological nesting.
const maxWalkDepth = 64

// node is one object or array element reached during a walk.
type node struct {
	key   string       // key in the parent object; array elements inherit the array's key
	value gjson.Result //
	path  []string     // object keys from the walk root down to, and including, key
	depth int
}

// walk visits every object in the tree rooted at root, depth first in
// document order. Returning false from visit skips the node's children.
func walk(root gjson.Result, visit func(n node) bool) {
	stack := []node{{value: root}}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.depth > maxWalkDepth {
			continue
		}
		if n.value.IsObject() && !visit(n) {
			continue
		}

		var children []node
		switch {
		case n.value.IsObject():
			n.value.ForEach(func(k, v gjson.Result) bool {
				if v.IsObject() || v.IsArray() {
					children = append(children, node{
						key:   k.String(),
						value: v,
						path:  appendPath(n.path, k.String()),
						depth: n.depth + 1,
					})
				}
				return true
			})
		case n.value.IsArray():
			for _, v := range n.value.Array() {
				if v.IsObject() || v.IsArray() {
					children = append(children, node{key: n.key, value: v, path: n.path, depth: n.depth + 1})
				}
			}
		}
		// Push in reverse so the first child is visited first.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

// stringValue returns the value when it is a JSON string, and false for
// every other type including numbers and null.
func stringValue(r gjson.Result) (string, bool) {
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// arnSuffix returns the logical id at the end of an ARN
// (arn:aws:quicksight:region:acct:dataset/<id> -> <id>).
func arnSuffix(arn string) string {
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return ""
	}
	if i := strings.LastIndex(arn, "/"); i >= 0 {
		return arn[i+1:]
	}
	return arn
}

// ArnID returns the logical id at the end of an ARN, or the input when it
// has no path separator.
func ArnID(arn string) string { return arnSuffix(arn) }

// onlyKey returns the single key of a one-key union object such as
// {"BarChartVisual": {...}}.
func onlyKey(r gjson.Result) (string, gjson.Result) {
	var key string
	var val gjson.Result
	count := 0
	r.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			return true
		}
		if count == 0 {
			key, val = k.String(), v
		}
		count++
		return true
	})
	return key, val
}

// staticStrings reads DefaultValues.StaticValues as strings.
func staticStrings(r gjson.Result) []string {
	var out []string
	for _, v := range r.Get("DefaultValues.StaticValues").Array() {
		out = append(out, v.String())
	}
	return out
}

// idSet is an insertion-ordered set of ids.
type idSet struct {
	seen  map[string]struct{}
	items []string
}

func newIDSet() *idSet { return &idSet{seen: make(map[string]struct{})} }

func (s *idSet) add(id string) {
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.items = append(s.items, id)
}

func (s *idSet) list() []string {
	if s.items == nil {
		return []string{}
	}
	return s.items
}
