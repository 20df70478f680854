package index

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrCorruptUIDList is returned when an index value cannot be decoded.
var ErrCorruptUIDList = errors.New("corrupt uid list")

// UIDList is the value of one global index cell: the documents on a shard
// that carry the term. Past the writer's cap only the count is kept.
type UIDList struct {
	Count      uint64
	IgnoreUIDs bool
	UIDs       []string
}

const (
	uidFieldUID    protowire.Number = 1
	uidFieldCount  protowire.Number = 2
	uidFieldIgnore protowire.Number = 3
)

// add records uid. It reports whether uid was new.
func (u *UIDList) add(uid string, maxUIDs int) bool {
	if !u.IgnoreUIDs {
		for _, have := range u.UIDs {
			if have == uid {
				return false
			}
		}
	}
	u.Count++
	if u.IgnoreUIDs {
		return true
	}
	u.UIDs = append(u.UIDs, uid)
	if maxUIDs > 0 && len(u.UIDs) > maxUIDs {
		u.IgnoreUIDs = true
		u.UIDs = nil
	}
	return true
}

// Encode serializes u in protobuf wire format.
func (u UIDList) Encode() []byte {
	var b []byte
	for _, uid := range u.UIDs {
		b = protowire.AppendTag(b, uidFieldUID, protowire.BytesType)
		b = protowire.AppendString(b, uid)
	}
	b = protowire.AppendTag(b, uidFieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, u.Count)
	if u.IgnoreUIDs {
		b = protowire.AppendTag(b, uidFieldIgnore, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

// DecodeUIDList parses the output of UIDList.Encode.
func DecodeUIDList(b []byte) (UIDList, error) {
	var u UIDList
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return UIDList{}, fmt.Errorf("%w: %v", ErrCorruptUIDList, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == uidFieldUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return UIDList{}, fmt.Errorf("%w: %v", ErrCorruptUIDList, protowire.ParseError(n))
			}
			u.UIDs = append(u.UIDs, string(v))
			b = b[n:]
		case (num == uidFieldCount || num == uidFieldIgnore) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return UIDList{}, fmt.Errorf("%w: %v", ErrCorruptUIDList, protowire.ParseError(n))
			}
			if num == uidFieldCount {
				u.Count = v
			} else {
				u.IgnoreUIDs = protowire.DecodeBool(v)
			}
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return UIDList{}, fmt.Errorf("%w: %v", ErrCorruptUIDList, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return u, nil
}
