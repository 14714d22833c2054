// Package jsontree holds JSON documents as ordered trees.
//
// Decoding into map[string]interface{} loses member order, and the
// normalization pass must hand back objects with their keys where the
// producer put them. Parsing goes through gjson, which iterates members
// in document order.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input text is not a JSON document.
var ErrInvalidJSON = errors.New("invalid JSON")

// Kind is the JSON type of a node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

// String returns the lowercase JSON type name.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "null"
	}
}

// Member is one key/value pair of an object node.
type Member struct {
	Key   string
	Value *Node
}

// Node is a JSON value. Only the fields matching Kind are meaningful.
type Node struct {
	Kind    Kind
	Bool    bool
	Num     string // number literal exactly as written
	Str     string
	Members []Member
	Items   []*Node
}

// NewString returns a string node.
func NewString(s string) *Node {
	return &Node{Kind: String, Str: s}
}

// Parse decodes text into an ordered tree.
func Parse(text string) (*Node, error) {
	if strings.TrimSpace(text) == "" || !gjson.Valid(text) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.Parse(text)), nil
}

func fromResult(r gjson.Result) *Node {
	switch r.Type {
	case gjson.False:
		return &Node{Kind: Bool, Bool: false}
	case gjson.True:
		return &Node{Kind: Bool, Bool: true}
	case gjson.Number:
		return &Node{Kind: Number, Num: r.Raw}
	case gjson.String:
		return &Node{Kind: String, Str: r.Str}
	case gjson.JSON:
		if r.IsArray() {
			n := &Node{Kind: Array, Items: []*Node{}}
			r.ForEach(func(_, value gjson.Result) bool {
				n.Items = append(n.Items, fromResult(value))
				return true
			})
			return n
		}
		n := &Node{Kind: Object, Members: []Member{}}
		r.ForEach(func(key, value gjson.Result) bool {
			n.Members = append(n.Members, Member{Key: key.Str, Value: fromResult(value)})
			return true
		})
		return n
	default:
		return &Node{Kind: Null}
	}
}

// Marshal renders the tree as compact JSON, keeping member order.
func Marshal(n *Node) string {
	var buf bytes.Buffer
	write(&buf, n)
	return buf.String()
}

func write(buf *bytes.Buffer, n *Node) {
	if n == nil {
		buf.WriteString("null")
		return
	}
	switch n.Kind {
	case Bool:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(n.Num)
	case String:
		writeString(buf, n.Str)
	case Array:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			write(buf, item)
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range n.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.Key)
			buf.WriteByte(':')
			write(buf, m.Value)
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a Go string cannot fail.
	_ = enc.Encode(s)
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
}
