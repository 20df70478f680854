package filter

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// QualifierRange is an interval over column qualifiers.
type QualifierRange struct {
	Start          string
	End            string
	StartInclusive bool
	EndInclusive   bool
}

// Contains reports whether cq falls within the interval.
func (q QualifierRange) Contains(cq string) bool {
	if q.StartInclusive {
		if cq < q.Start {
			return false
		}
	} else if cq <= q.Start {
		return false
	}
	if q.EndInclusive {
		return cq <= q.End
	}
	return cq < q.End
}

const (
	qrFieldStart          protowire.Number = 1
	qrFieldEnd            protowire.Number = 2
	qrFieldStartInclusive protowire.Number = 3
	qrFieldEndInclusive   protowire.Number = 4
)

// EncodeQualifierRange serializes q into an option-safe string.
func EncodeQualifierRange(q QualifierRange) string {
	var b []byte
	b = protowire.AppendTag(b, qrFieldStart, protowire.BytesType)
	b = protowire.AppendString(b, q.Start)
	b = protowire.AppendTag(b, qrFieldEnd, protowire.BytesType)
	b = protowire.AppendString(b, q.End)
	b = protowire.AppendTag(b, qrFieldStartInclusive, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(q.StartInclusive))
	b = protowire.AppendTag(b, qrFieldEndInclusive, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(q.EndInclusive))
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeQualifierRange parses the output of EncodeQualifierRange.
func DecodeQualifierRange(s string) (QualifierRange, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return QualifierRange{}, fmt.Errorf("%w: qualifier range: %v", ErrBadOption, err)
	}

	var q QualifierRange
	var seenStart, seenEnd bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return QualifierRange{}, fmt.Errorf("%w: qualifier range: %v", ErrBadOption, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && (num == qrFieldStart || num == qrFieldEnd):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return QualifierRange{}, fmt.Errorf("%w: qualifier range: %v", ErrBadOption, protowire.ParseError(n))
			}
			b = b[n:]
			if num == qrFieldStart {
				q.Start, seenStart = string(v), true
			} else {
				q.End, seenEnd = string(v), true
			}
		case typ == protowire.VarintType && (num == qrFieldStartInclusive || num == qrFieldEndInclusive):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return QualifierRange{}, fmt.Errorf("%w: qualifier range: %v", ErrBadOption, protowire.ParseError(n))
			}
			b = b[n:]
			if num == qrFieldStartInclusive {
				q.StartInclusive = protowire.DecodeBool(v)
			} else {
				q.EndInclusive = protowire.DecodeBool(v)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return QualifierRange{}, fmt.Errorf("%w: qualifier range: %v", ErrBadOption, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !seenStart || !seenEnd {
		return QualifierRange{}, fmt.Errorf("%w: qualifier range missing bounds", ErrBadOption)
	}
	if q.End < q.Start {
		return QualifierRange{}, fmt.Errorf("%w: qualifier range end %q before start %q", ErrBadOption, q.End, q.Start)
	}
	return q, nil
}
