package execution

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"lob/domain/orderbook"
)

// Reports are encoded in protobuf wire format so consumers can decode
// them with an ordinary generated message:
//
//	message ExecutionReport {
//	  uint64 seq            = 1;
//	  uint32 index          = 2;
//	  uint32 kind           = 3;
//	  string order_id       = 4;
//	  uint32 side           = 5;
//	  double price          = 6;
//	  double quantity       = 7;
//	  double remaining      = 8;
//	  int64  time_unix_nano = 9;
//	  string reason         = 10;
//	}
const (
	fieldSeq protowire.Number = iota + 1
	fieldIndex
	fieldKind
	fieldOrderID
	fieldSide
	fieldPrice
	fieldQuantity
	fieldRemaining
	fieldTime
	fieldReason
)

var ErrCorruptReport = errors.New("execution: corrupt report")

func Marshal(r Report) []byte {
	b := make([]byte, 0, 64+len(r.OrderID)+len(r.Reason))
	b = appendVarint(b, fieldSeq, r.Seq)
	b = appendVarint(b, fieldIndex, uint64(r.Index))
	b = appendVarint(b, fieldKind, uint64(r.Kind))
	b = appendString(b, fieldOrderID, r.OrderID)
	b = appendVarint(b, fieldSide, uint64(r.Side))
	b = appendDouble(b, fieldPrice, r.Price)
	b = appendDouble(b, fieldQuantity, r.Quantity)
	b = appendDouble(b, fieldRemaining, r.Remaining)
	if !r.Time.IsZero() {
		b = appendVarint(b, fieldTime, uint64(r.Time.UnixNano()))
	}
	b = appendString(b, fieldReason, r.Reason)
	return b
}

func Unmarshal(b []byte) (Report, error) {
	var r Report
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Report{}, errors.Wrap(ErrCorruptReport, protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Report{}, errors.Wrapf(ErrCorruptReport, "field %d: %v", num, protowire.ParseError(m))
			}
			setVarint(&r, num, v)
			n = m
		case typ == protowire.Fixed64Type && isDoubleField(num):
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return Report{}, errors.Wrapf(ErrCorruptReport, "field %d: %v", num, protowire.ParseError(m))
			}
			setDouble(&r, num, math.Float64frombits(v))
			n = m
		case typ == protowire.BytesType && (num == fieldOrderID || num == fieldReason):
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Report{}, errors.Wrapf(ErrCorruptReport, "field %d: %v", num, protowire.ParseError(m))
			}
			if num == fieldOrderID {
				r.OrderID = v
			} else {
				r.Reason = v
			}
			n = m
		case num <= fieldReason:
			return Report{}, errors.Wrapf(ErrCorruptReport, "field %d has wire type %d", num, typ)
		default:
			// unknown field from a newer writer
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Report{}, errors.Wrapf(ErrCorruptReport, "field %d: %v", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return r, nil
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldSeq, fieldIndex, fieldKind, fieldSide, fieldTime:
		return true
	}
	return false
}

func isDoubleField(num protowire.Number) bool {
	return num == fieldPrice || num == fieldQuantity || num == fieldRemaining
}

func setVarint(r *Report, num protowire.Number, v uint64) {
	switch num {
	case fieldSeq:
		r.Seq = v
	case fieldIndex:
		r.Index = uint32(v)
	case fieldKind:
		r.Kind = Kind(v)
	case fieldSide:
		r.Side = orderbook.Side(v)
	case fieldTime:
		r.Time = time.Unix(0, int64(v)).UTC()
	}
}

func setDouble(r *Report, num protowire.Number, v float64) {
	switch num {
	case fieldPrice:
		r.Price = v
	case fieldQuantity:
		r.Quantity = v
	case fieldRemaining:
		r.Remaining = v
	}
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
