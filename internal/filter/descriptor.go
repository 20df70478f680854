// Package filter defines the server-pushdown filter descriptors attached to a
// scan session and the stages a store uses to apply them.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownKind is returned for a descriptor whose kind no stage implements.
	ErrUnknownKind = errors.New("unknown filter kind")

	// ErrBadOption is returned when a descriptor's options cannot be parsed.
	ErrBadOption = errors.New("invalid filter option")

	// ErrDuplicatePriority is returned when two descriptors share a priority.
	ErrDuplicatePriority = errors.New("duplicate filter priority")

	// ErrSessionExpired ends a scan whose session time budget is spent.
	ErrSessionExpired = errors.New("scan session time budget exceeded")
)

// Kind identifies which stage a descriptor installs.
type Kind int

const (
	KindRowDecode Kind = iota + 1
	KindDateRange
	KindCompositeSeek
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindRowDecode:
		return "RowDecode"
	case KindDateRange:
		return "DateRange"
	case KindCompositeSeek:
		return "CompositeSeek"
	case KindTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Option keys.
const (
	// OptionRange holds an encoded QualifierRange for DateRange.
	OptionRange = "range"

	// OptionComponentFields is the comma-delimited ordered list of composite components.
	OptionComponentFields = "component.fields"

	// OptionSeparator is the composite component separator.
	OptionSeparator = "separator"

	// DiscreteIndexTypeSuffix is appended to a component field name to name
	// that component's discrete index type.
	DiscreteIndexTypeSuffix = ".discrete.index.type"
)

// Descriptor is one server-pushdown filter. Lower priorities run closer to
// the raw storage cells.
type Descriptor struct {
	Priority int
	Name     string
	Kind     Kind
	Options  map[string]string
}

// NewDescriptor creates a descriptor with an empty option map.
func NewDescriptor(priority int, name string, kind Kind) Descriptor {
	return Descriptor{
		Priority: priority,
		Name:     name,
		Kind:     kind,
		Options:  make(map[string]string),
	}
}

// AddOption sets an option, allocating the map if needed.
func (d *Descriptor) AddOption(key, value string) {
	if d.Options == nil {
		d.Options = make(map[string]string)
	}
	d.Options[key] = value
}

func (d Descriptor) String() string {
	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, k+"="+d.Options[k])
	}
	return fmt.Sprintf("%s(%d, %s){%s}", d.Name, d.Priority, d.Kind, strings.Join(opts, ", "))
}

// SortByPriority returns a copy of descs ordered by ascending priority.
func SortByPriority(descs []Descriptor) []Descriptor {
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
