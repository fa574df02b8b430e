package settings

import (
	"fmt"
	"strings"
)

// Dump lists every key of s as "key = value (kind)", one per line, sorted.
func Dump(s Settings) string {
	return dumpKeys(s, s.Keys())
}

// Dump lists only the keys occupied by the value stored under key.
func (c *Codec[T]) Dump(s Settings, key string) string {
	return dumpKeys(s, c.Keys(s, key))
}

func dumpKeys(s Settings, keys []string) string {
	var buf strings.Builder
	for _, k := range keys {
		v, ok := LookupAny(s, k)
		if !ok {
			fmt.Fprintf(&buf, "%s = <none>\n", k)
			continue
		}
		fmt.Fprintf(&buf, "%s = %v (%v)\n", k, v, v.kind)
	}
	return buf.String()
}
