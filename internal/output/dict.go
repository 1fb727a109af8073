package output

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

// WriteDict renders a response dictionary as indented, JSON-like text.
// String values that are valid UTF-8 print quoted; binary values print as a
// hex preview so route labels and keys stay readable.
func WriteDict(w io.Writer, d *bencode.Dict) {
	writeValue(w, d, 0)
	fmt.Fprintln(w)
}

func writeValue(w io.Writer, v bencode.Value, indent int) {
	switch v := v.(type) {
	case bencode.Int:
		fmt.Fprintf(w, "%d", int64(v))
	case bencode.String:
		writeString(w, v)
	case bencode.List:
		if len(v) == 0 {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprint(w, "[\n")
		for i, item := range v {
			pad(w, indent+1)
			writeValue(w, item, indent+1)
			if i < len(v)-1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, "\n")
		}
		pad(w, indent)
		fmt.Fprint(w, "]")
	case *bencode.Dict:
		if v.Len() == 0 {
			fmt.Fprint(w, "{}")
			return
		}
		fmt.Fprint(w, "{\n")
		i := 0
		v.Walk(func(key string, val bencode.Value) bool {
			pad(w, indent+1)
			fmt.Fprintf(w, "%s: ", strconv.Quote(key))
			writeValue(w, val, indent+1)
			if i < v.Len()-1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, "\n")
			i++
			return true
		})
		pad(w, indent)
		fmt.Fprint(w, "}")
	}
}

func writeString(w io.Writer, s bencode.String) {
	if utf8.Valid(s) {
		fmt.Fprint(w, strconv.Quote(string(s)))
		return
	}
	fmt.Fprintf(w, "hex(%x)", []byte(s))
}

func pad(w io.Writer, indent int) {
	for i := 0; i < indent; i++ {
		fmt.Fprint(w, "  ")
	}
}
