// Package normalize canonicalizes text values produced by a generator.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/songzhibin97/jsonforge/jsontree"
)

const (
	nbsp       = '\u00A0'
	figureSp   = '\u2007'
	narrowNbsp = '\u202F'
)

// dashes and Unicode spaces are rewritten after trimming; full-width digits
// fold to ASCII. The replaced sets are disjoint, so one pass is enough.
var replacer = strings.NewReplacer(
	"\u2010", "-", // hyphen
	"\u2011", "-", // non-breaking hyphen
	"\u2012", "-", // figure dash
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
	"\u2015", "-", // horizontal bar
	"\u2212", "-", // minus sign
	"\u00A0", " ",
	"\u2007", " ",
	"\u202F", " ",
	"\uFF10", "0",
	"\uFF11", "1",
	"\uFF12", "2",
	"\uFF13", "3",
	"\uFF14", "4",
	"\uFF15", "5",
	"\uFF16", "6",
	"\uFF17", "7",
	"\uFF18", "8",
	"\uFF19", "9",
)

func isTrimRune(r rune) bool {
	return unicode.IsSpace(r) || r == nbsp || r == figureSp || r == narrowNbsp
}

// String trims ASCII and Unicode spaces from both ends, then unifies dash
// variants to '-', turns the remaining non-breaking spaces into ' ' and folds
// full-width digits to ASCII. Applying it twice gives the same result as once.
func String(s string) string {
	if s == "" {
		return s
	}
	return replacer.Replace(strings.TrimFunc(s, isTrimRune))
}

// Tree returns a copy of n with every string leaf passed through String.
// Node kinds and object member order are preserved; nil stays nil.
func Tree(n *jsontree.Node) *jsontree.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case jsontree.String:
		return jsontree.NewString(String(n.Str))
	case jsontree.Object:
		out := &jsontree.Node{Kind: jsontree.Object, Members: make([]jsontree.Member, 0, len(n.Members))}
		for _, m := range n.Members {
			out.Members = append(out.Members, jsontree.Member{Key: m.Key, Value: Tree(m.Value)})
		}
		return out
	case jsontree.Array:
		out := &jsontree.Node{Kind: jsontree.Array, Items: make([]*jsontree.Node, 0, len(n.Items))}
		for _, item := range n.Items {
			out.Items = append(out.Items, Tree(item))
		}
		return out
	default:
		cp := *n
		return &cp
	}
}

// JSON parses text, normalizes it and renders it back as compact JSON.
func JSON(text string) (string, error) {
	root, err := jsontree.Parse(text)
	if err != nil {
		return "", err
	}
	return jsontree.Marshal(Tree(root)), nil
}

var fenceOpen = regexp.MustCompile("^```[a-zA-Z]*\\r?\\n")

// StripFences removes a surrounding Markdown code fence such as ```json ... ```.
// Text that is not fenced on both ends is returned unchanged.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return raw
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
