package zarr

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Dtype is the set of all zarr data types
// Simple data types as a string following the NumPy array protocol type string
// (typestr) format. The format consists of 3 parts:
//   - One character describing the byteorder of the data:
//     "<": little-endian; ">": big-endian; "|": not-relevant)
//   - One character code giving the basic type of the array:
//   - "b": Boolean (integer type where all values are only True or False)
//   - "i": integer;
//   - "u": unsigned integer
//   - "f": floating point
//   - "c": complex floating point
//   - "m": timedelta;
//   - "M": datetime
//   - "S": string (fixed-length sequence of char)
//   - "U": unicode (fixed-length sequence of Py_UNICODE)
//   - "O": object (variable-length values behind an object codec)
//   - "V": other (void * – each item is a fixed-size chunk of memory))
//   - An integer specifying the number of bytes the type uses, absent for
//     object types, whose items have no fixed width.
//
// The byte order is optional in some circumstances, within the zarr format
// byte order MUST be specified
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

func ParseDtype(s string) (dt Dtype, err error) {
	// bug in python implementation uses HTML escape sequences when serializaing JSON
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 2 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	var sizeStr, unitStr string
	for i, b := range s {
		if b == '[' {
			unitStr = s[i:]
			break
		}
		sizeStr += string(b)
	}

	if sizeStr == "" {
		if dt.BasicType == BTObject {
			return dt, nil
		}
		return dt, fmt.Errorf("invalid Dtype string. %q carries no byte size", string(boByte)+string(typeByte)+s)
	}

	size, err := strconv.ParseInt(sizeStr, 10, 0)
	if err != nil {
		return dt, err
	}
	dt.ByteSize = int(size)

	// TODO: validate unit string
	dt.Units = unitStr

	return dt, nil
}

func (dt Dtype) String() string {
	if dt.BasicType == BTObject && dt.ByteSize == 0 {
		return fmt.Sprintf("%s%s", string(dt.ByteOrder), string(dt.BasicType))
	}
	s := fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
	if dt.Units != "" {
		s += dt.Units
	}
	return s
}

// ItemSize is the fixed width of one array element in bytes, 0 for object
// types
func (dt Dtype) ItemSize() int { return dt.ByteSize }

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

// binaryOrder maps the declared byte order onto an encoding/binary decoder
// order. Single-byte types decode the same either way.
func (dt Dtype) binaryOrder() binary.ByteOrder {
	if dt.ByteOrder == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// sliceFactory returns the decode byte order and a factory allocating a
// typed decode target of size elements, matched to the dtype. Object,
// fixed-string and void types have no fixed-width decode target.
func (dt Dtype) sliceFactory(size int) (binary.ByteOrder, func() interface{}, error) {
	var factory func() interface{}
	switch dt.BasicType {
	case BTBoolean:
		factory = func() interface{} { return make([]bool, size) }
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			factory = func() interface{} { return make([]int8, size) }
		case 2:
			factory = func() interface{} { return make([]int16, size) }
		case 4:
			factory = func() interface{} { return make([]int32, size) }
		case 8:
			factory = func() interface{} { return make([]int64, size) }
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			factory = func() interface{} { return make([]uint8, size) }
		case 2:
			factory = func() interface{} { return make([]uint16, size) }
		case 4:
			factory = func() interface{} { return make([]uint32, size) }
		case 8:
			factory = func() interface{} { return make([]uint64, size) }
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			factory = func() interface{} { return make([]float32, size) }
		case 8:
			factory = func() interface{} { return make([]float64, size) }
		}
	case BTComplex:
		switch dt.ByteSize {
		case 8:
			factory = func() interface{} { return make([]complex64, size) }
		case 16:
			factory = func() interface{} { return make([]complex128, size) }
		}
	case BTTimedelta, BTDatetime:
		if dt.ByteSize == 8 {
			factory = func() interface{} { return make([]int64, size) }
		}
	}
	if factory == nil {
		return nil, nil, fmt.Errorf("no fixed-width decoding for dtype %q", dt)
	}
	return dt.binaryOrder(), factory, nil
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTObject        BasicType = 'O'
	BTOther         BasicType = 'V'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timeDelta",
	BTDatetime:      "dateTime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTObject:        "object",
	BTOther:         "other",
}

// v3DataTypes maps zarr v3 plain data type names onto the typestr model.
// Multi-byte types take their byte order from the array's bytes codec.
var v3DataTypes = map[string]Dtype{
	"bool":       {ByteOrder: BONotRelevant, BasicType: BTBoolean, ByteSize: 1},
	"int8":       {ByteOrder: BONotRelevant, BasicType: BTInteger, ByteSize: 1},
	"int16":      {BasicType: BTInteger, ByteSize: 2},
	"int32":      {BasicType: BTInteger, ByteSize: 4},
	"int64":      {BasicType: BTInteger, ByteSize: 8},
	"uint8":      {ByteOrder: BONotRelevant, BasicType: BTUnsigned, ByteSize: 1},
	"uint16":     {BasicType: BTUnsigned, ByteSize: 2},
	"uint32":     {BasicType: BTUnsigned, ByteSize: 4},
	"uint64":     {BasicType: BTUnsigned, ByteSize: 8},
	"float32":    {BasicType: BTFloatingPoint, ByteSize: 4},
	"float64":    {BasicType: BTFloatingPoint, ByteSize: 8},
	"complex64":  {BasicType: BTComplex, ByteSize: 8},
	"complex128": {BasicType: BTComplex, ByteSize: 16},
	"string":     {ByteOrder: BONotRelevant, BasicType: BTObject},
}

// ParseV3DataType resolves a zarr v3 data type name, applying order to
// multi-byte types.
func ParseV3DataType(name string, order ByteOrder) (Dtype, error) {
	dt, ok := v3DataTypes[name]
	if !ok {
		return Dtype{}, fmt.Errorf("unsupported data type: %q", name)
	}
	if dt.ByteOrder == 0 {
		if order == 0 {
			order = BOLittleEndian
		}
		dt.ByteOrder = order
	}
	return dt, nil
}
