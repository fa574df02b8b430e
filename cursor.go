package settings

import "strings"

const (
	keySep         = "."
	presenceSuffix = "?"
	sizeSuffix     = ".size"
)

// cursor tracks where a traversal is inside the key space: one key segment
// per open element below the root, one child counter per open structure,
// and how many structures are open.
//
// At rest keys is [root], indices is [0] and depth is 0. A completed
// traversal returns the cursor to rest by itself; after a failed one the
// owner calls reset.
type cursor struct {
	root    string
	keys    []string
	indices []int
	depth   int
}

func makeCursor(root string) cursor {
	c := cursor{root: root}
	c.reset()
	return c
}

func (c *cursor) reset() {
	c.keys = append(c.keys[:0], c.root)
	c.indices = append(c.indices[:0], 0)
	c.depth = 0
}

func (c *cursor) atRest() bool {
	return c.depth == 0 && len(c.keys) == 1 && c.keys[0] == c.root && len(c.indices) == 1 && c.indices[0] == 0
}

// path is the key of the element the cursor is on.
func (c *cursor) path() string {
	if len(c.keys) == 1 {
		return c.keys[0]
	}
	return strings.Join(c.keys, keySep)
}

// childPath is the key the named child of the current element would have.
func (c *cursor) childPath(name string) string {
	return c.path() + keySep + name
}

func (c *cursor) push(name string) {
	c.keys = append(c.keys, name)
}

func (c *cursor) pop() {
	c.keys = c.keys[:len(c.keys)-1]
	if len(c.keys) == 0 {
		c.reset()
	}
}

// begin opens a structure at the current element. The root structure
// reuses the initial counter; nested ones push a new one.
func (c *cursor) begin() {
	if c.depth > 0 {
		c.indices = append(c.indices, 0)
	}
	c.depth++
}

// next returns the index of the next child of the innermost structure and
// advances the counter.
func (c *cursor) next() int {
	top := len(c.indices) - 1
	i := c.indices[top]
	c.indices[top]++
	return i
}

// end closes the innermost structure. Closing the root structure puts the
// cursor back at rest, ready for the next traversal.
func (c *cursor) end() {
	c.depth--
	if c.depth <= 0 {
		c.reset()
		return
	}
	c.indices = c.indices[:len(c.indices)-1]
}
