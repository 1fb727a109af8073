package bencode

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrTooLarge is returned by EncodeBounded when the encoded form would exceed
// the caller's frame cap.
var ErrTooLarge = errors.New("bencode: encoded message exceeds size limit")

// Encode serializes a value to its bencoded form.
func Encode(v Value) ([]byte, error) {
	return appendValue(nil, v)
}

// EncodeBounded serializes a value, failing with ErrTooLarge if the result
// would exceed max bytes. The admin wire protocol caps every frame, and the
// encoder surfaces the overflow rather than truncating.
func EncodeBounded(v Value, max int) ([]byte, error) {
	buf, err := appendValue(make([]byte, 0, max), v)
	if err != nil {
		return nil, err
	}
	if len(buf) > max {
		return nil, ErrTooLarge
	}
	return buf, nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch v := v.(type) {
	case Int:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, int64(v), 10)
		return append(buf, 'e'), nil
	case String:
		buf = strconv.AppendInt(buf, int64(len(v)), 10)
		buf = append(buf, ':')
		return append(buf, v...), nil
	case List:
		buf = append(buf, 'l')
		var err error
		for _, item := range v {
			if buf, err = appendValue(buf, item); err != nil {
				return nil, err
			}
		}
		return append(buf, 'e'), nil
	case *Dict:
		if v == nil {
			return nil, fmt.Errorf("bencode: cannot encode nil dict")
		}
		buf = append(buf, 'd')
		var err error
		for _, e := range v.entries {
			if buf, err = appendValue(buf, String(e.key)); err != nil {
				return nil, err
			}
			if buf, err = appendValue(buf, e.val); err != nil {
				return nil, err
			}
		}
		return append(buf, 'e'), nil
	case nil:
		return nil, fmt.Errorf("bencode: cannot encode nil value")
	default:
		return nil, fmt.Errorf("bencode: cannot encode %T", v)
	}
}
