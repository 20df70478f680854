package filter

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// DiscreteIndexType orders the values of one composite component.
type DiscreteIndexType interface {
	Name() string
	Compare(a, b string) int
}

var (
	discreteMu    sync.RWMutex
	discreteTypes = map[string]DiscreteIndexType{}
)

func init() {
	RegisterDiscreteType(LexicographicType{})
	RegisterDiscreteType(TextType{})
	RegisterDiscreteType(IntegerType{})
	RegisterDiscreteType(DateType{})
}

// RegisterDiscreteType makes t resolvable by name from descriptor options.
func RegisterDiscreteType(t DiscreteIndexType) {
	discreteMu.Lock()
	defer discreteMu.Unlock()
	discreteTypes[t.Name()] = t
}

// LookupDiscreteType resolves a registered type.
func LookupDiscreteType(name string) (DiscreteIndexType, bool) {
	discreteMu.RLock()
	defer discreteMu.RUnlock()
	t, ok := discreteTypes[name]
	return t, ok
}

// LexicographicType compares raw bytes. Used when a component has no type.
type LexicographicType struct{}

func (LexicographicType) Name() string            { return "lexicographic" }
func (LexicographicType) Compare(a, b string) int { return strings.Compare(a, b) }

// TextType compares case-insensitively.
type TextType struct{}

func (TextType) Name() string { return "text" }
func (TextType) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// IntegerType compares base-10 integers numerically, falling back to byte
// order when either side does not parse.
type IntegerType struct{}

func (IntegerType) Name() string { return "integer" }
func (IntegerType) Compare(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// DateType compares yyyyMMdd days, falling back to byte order.
type DateType struct{}

func (DateType) Name() string { return "date" }
func (DateType) Compare(a, b string) int {
	x, errA := time.Parse("20060102", a)
	y, errB := time.Parse("20060102", b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return x.Compare(y)
}
