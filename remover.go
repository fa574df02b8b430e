package settings

import "strconv"

// remover walks the keys a value occupies without reading the values
// themselves. Markers and sizes are still read, with false and 0 standing
// in for absent ones, because they decide how far the walk goes.
type remover struct {
	s    Settings
	c    cursor
	keys []string
	seen map[string]struct{}
}

func newRemover(s Settings, key string) *remover {
	return &remover{s: s, c: makeCursor(key)}
}

// enumerate returns the occupied keys in visit order, without duplicates.
func (r *remover) enumerate(d *Descriptor) []string {
	r.keys = nil
	r.seen = make(map[string]struct{})
	defer r.c.reset()
	r.value(d)
	keys := r.keys
	r.keys, r.seen = nil, nil
	return keys
}

func (r *remover) add(key string) {
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.keys = append(r.keys, key)
}

func (r *remover) value(d *Descriptor) {
	path := r.c.path()
	if d.nullable {
		r.add(path + presenceSuffix)
		if !r.s.GetBool(path+presenceSuffix, false) {
			return
		}
		d = d.base
	} else if d.shape.Structured() && r.c.depth > 0 {
		r.add(path + presenceSuffix)
	}

	switch d.shape {
	case ShapePrimitive, ShapeEnum:
		r.add(path)

	case ShapeRecord:
		r.c.begin()
		for {
			i, ok := r.nextChild(d, len(d.fields))
			if !ok {
				break
			}
			f := d.fields[i]
			r.c.push(f.name)
			r.value(f.desc)
			r.c.pop()
		}
		r.c.end()

	case ShapeList, ShapeMap:
		r.add(path + sizeSuffix)
		n := int(max(r.s.GetInt(path+sizeSuffix, 0), 0))
		if d.shape == ShapeMap {
			n *= 2
		}
		r.c.begin()
		for {
			i, ok := r.nextChild(d, n)
			if !ok {
				break
			}
			// A stored size may exceed the elements actually present.
			if !r.occupied(r.c.childPath(strconv.Itoa(i))) {
				break
			}
			r.c.push(strconv.Itoa(i))
			r.value(d.ElementDescriptor(i))
			r.c.pop()
		}
		r.c.end()
	}
}

// occupied reports whether anything an element can store exists at path.
func (r *remover) occupied(path string) bool {
	return r.s.HasKey(path) || r.s.HasKey(path+presenceSuffix) || r.s.HasKey(path+sizeSuffix)
}

func (r *remover) nextChild(d *Descriptor, n int) (int, bool) {
	for {
		i := r.c.next()
		if i >= n {
			return i, false
		}
		if d.ElementOptional(i) && missingOptional(r.s, r.c.childPath(d.ElementName(i))) {
			continue
		}
		return i, true
	}
}
