package settings

import (
	"fmt"
	"reflect"
)

const tagName = "settings"

type fieldTag struct {
	name      string
	skip      bool
	optional  bool
	nilIsNull bool
}

// parseFieldTag reads `settings:"name,optional,nullable"`. An empty name
// keeps the default (the Go field name with a lowercase first letter).
func parseFieldTag(sf reflect.StructField) fieldTag {
	raw, ok := sf.Tag.Lookup(tagName)
	tag := fieldTag{name: lowerFirst(sf.Name)}
	if !ok {
		return tag
	}
	if raw == "-" {
		tag.skip = true
		return tag
	}
	name, rest, _ := splitByte(raw, ',')
	if name != "" {
		tag.name = name
	}
	for rest != "" {
		var opt string
		opt, rest, _ = splitByte(rest, ',')
		switch opt {
		case "":
		case "optional":
			tag.optional = true
		case "nullable":
			tag.nilIsNull = true
		default:
			panic(fmt.Errorf("%s: unknown %s tag option %q", sf.Name, tagName, opt))
		}
	}
	return tag
}

func validKeySegment(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '.', '?':
			return false
		}
	}
	return true
}
