package api

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype under which records travel.
const CodecName = "kvmsg"

// Field numbers of the record wire format. The layout is compatible with a
// protobuf message
//
//	message Record {
//		bytes key = 1;
//		int64 sequence = 2;
//		bytes body = 3;
//	}
const (
	fieldKey      = 1
	fieldSequence = 2
	fieldBody     = 3
)

var (
	// ErrMalformedRecord is returned by Decode when the bytes do not hold a
	// record.
	ErrMalformedRecord = errors.New("api: malformed record")
)

func init() {
	encoding.RegisterCodec(Codec{})
}

// Marshal encodes the record in protobuf wire format.
func (r *Record) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, r.Size()))
	if err := buf.EncodeVarint(uint64(fieldKey<<3 | proto.WireBytes)); err != nil {
		return nil, err
	}
	if err := buf.EncodeStringBytes(r.Key); err != nil {
		return nil, err
	}
	if r.Sequence != 0 {
		if err := buf.EncodeVarint(uint64(fieldSequence<<3 | proto.WireVarint)); err != nil {
			return nil, err
		}
		if err := buf.EncodeVarint(uint64(r.Sequence)); err != nil {
			return nil, err
		}
	}
	if len(r.Body) > 0 {
		if err := buf.EncodeVarint(uint64(fieldBody<<3 | proto.WireBytes)); err != nil {
			return nil, err
		}
		if err := buf.EncodeRawBytes(r.Body); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Size returns the encoded size of the record.
func (r *Record) Size() int {
	n := 1 + proto.SizeVarint(uint64(len(r.Key))) + len(r.Key)
	if r.Sequence != 0 {
		n += 1 + proto.SizeVarint(uint64(r.Sequence))
	}
	if len(r.Body) > 0 {
		n += 1 + proto.SizeVarint(uint64(len(r.Body))) + len(r.Body)
	}
	return n
}

// Unmarshal decodes data into r. Unknown fields are skipped. A record
// without a key is malformed.
func (r *Record) Unmarshal(data []byte) error {
	var (
		rec    Record
		hasKey bool
	)
	for i := 0; i < len(data); {
		tag, n := proto.DecodeVarint(data[i:])
		if n == 0 {
			return errors.Wrap(ErrMalformedRecord, "bad tag")
		}
		i += n

		field, wire := tag>>3, int(tag&7)
		switch wire {
		case proto.WireVarint:
			v, n := proto.DecodeVarint(data[i:])
			if n == 0 {
				return errors.Wrapf(ErrMalformedRecord, "bad varint for field %d", field)
			}
			i += n
			if field == fieldSequence {
				rec.Sequence = int64(v)
			}
		case proto.WireBytes:
			l, n := proto.DecodeVarint(data[i:])
			if n == 0 {
				return errors.Wrapf(ErrMalformedRecord, "bad length for field %d", field)
			}
			i += n
			if l > uint64(len(data)-i) {
				return errors.Wrapf(ErrMalformedRecord, "field %d truncated", field)
			}
			b := data[i : i+int(l)]
			i += int(l)
			switch field {
			case fieldKey:
				rec.Key = string(b)
				hasKey = true
			case fieldBody:
				rec.Body = append([]byte(nil), b...)
			}
		case proto.WireFixed64:
			if len(data)-i < 8 {
				return errors.Wrapf(ErrMalformedRecord, "field %d truncated", field)
			}
			i += 8
		case proto.WireFixed32:
			if len(data)-i < 4 {
				return errors.Wrapf(ErrMalformedRecord, "field %d truncated", field)
			}
			i += 4
		default:
			return errors.Wrapf(ErrMalformedRecord, "unsupported wire type %d", wire)
		}
	}
	if !hasKey {
		return errors.Wrap(ErrMalformedRecord, "missing key")
	}

	*r = rec
	return nil
}

// Decode returns the record held in data. The error wraps ErrMalformedRecord
// when data is not a record.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := r.Unmarshal(data); err != nil {
		return nil, err
	}
	return &r, nil
}

// Frame is an undecoded message. Receivers use it so that a bad message
// fails to decode on its own instead of breaking the stream carrying it.
type Frame []byte

// Codec is the gRPC codec for records and frames.
type Codec struct{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *Record:
		return m.Marshal()
	case *Frame:
		return []byte(*m), nil
	case Frame:
		return []byte(m), nil
	}
	return nil, fmt.Errorf("api: cannot marshal %T", v)
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case *Record:
		return m.Unmarshal(data)
	case *Frame:
		*m = append((*m)[:0], data...)
		return nil
	}
	return fmt.Errorf("api: cannot unmarshal into %T", v)
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}
