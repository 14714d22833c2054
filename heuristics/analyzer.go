// Package heuristics flags JSON values that look like synthetic placeholders
// ("John Doe", "test@example.com", "123456") instead of realistic data.
package heuristics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/songzhibin97/jsonforge/jsontree"
	"github.com/songzhibin97/jsonforge/signature"
)

const (
	// RootPath is the path of the document root.
	RootPath = "$"

	previewLimit = 120
)

var (
	// Marker words, guarded by non-letter boundaries so Cyrillic works too.
	wordPlaceholders = regexp.MustCompile(`(?i)(^|[^\p{L}])(test|example|sample|dummy|foobar|password|пароль|пример|тест)([^\p{L}]|$)`)

	loremIpsum = regexp.MustCompile(`(?i)lorem\s+ipsum`)

	commonNames = regexp.MustCompile(`(?i)(^|[^\p{L}])(john\s+doe|jane\s+doe|ivan\s+ivanov|ivanov\s+ivan(\s+ivanovich)?|иванов\s+иван(\s+иванович)?|петров\s+петр(\s+петрович)?)([^\p{L}]|$)`)

	emailPlaceholder = regexp.MustCompile(`(?i)\b(test|example|demo|sample|dummy|admin|user|foo|bar)@(?:example\.(?:com|org|net)|test\.(?:com|org|net)|localhost)\b`)

	phonePlaceholder = regexp.MustCompile(`\b123[-\s]?456\b|\b000[-\s]?000\b|\b555[-\s]?01\d{2}\b`)

	digitRun = regexp.MustCompile(`[0-9]+`)

	canonicalRuns = map[string]struct{}{
		"1234": {}, "012345": {}, "12345": {}, "123456": {}, "987654321": {},
		"0000": {}, "1111": {}, "2222": {}, "3333": {}, "4444": {},
		"5555": {}, "6666": {}, "7777": {}, "8888": {}, "9999": {},
	}
)

// Analyzer walks a JSON document and reports placeholder-like leaves.
type Analyzer struct{}

// NewAnalyzer returns a ready Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze returns one warning per suspicious string or number leaf, in
// document order. It fails with jsontree.ErrInvalidJSON for malformed input.
func (a *Analyzer) Analyze(jsonText string) ([]string, error) {
	root, err := jsontree.Parse(jsonText)
	if err != nil {
		return nil, fmt.Errorf("analyze placeholders: %w", err)
	}
	warnings := []string{}
	walk(root, RootPath, &warnings)
	return warnings, nil
}

// Signature is the order-independent digest of the warnings for jsonText.
func (a *Analyzer) Signature(jsonText string) (string, error) {
	warnings, err := a.Analyze(jsonText)
	if err != nil {
		return "", err
	}
	return signature.Of(warnings), nil
}

func walk(n *jsontree.Node, path string, warnings *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case jsontree.String:
		check(n.Str, path, warnings)
	case jsontree.Number:
		check(n.Num, path, warnings)
	case jsontree.Object:
		for _, m := range n.Members {
			walk(m.Value, path+"/"+m.Key, warnings)
		}
	case jsontree.Array:
		for i, item := range n.Items {
			walk(item, path+"["+strconv.Itoa(i)+"]", warnings)
		}
	}
}

func check(raw, path string, warnings *[]string) {
	if IsPlaceholder(raw) {
		*warnings = append(*warnings, fmt.Sprintf("%s: suspicious placeholder-like value: '%s'", path, Preview(raw)))
	}
}

// IsPlaceholder reports whether a single value looks synthetic.
func IsPlaceholder(s string) bool {
	v := matchForm(s)
	if v == "" {
		return false
	}
	if wordPlaceholders.MatchString(v) ||
		loremIpsum.MatchString(v) ||
		commonNames.MatchString(v) ||
		emailPlaceholder.MatchString(v) ||
		phonePlaceholder.MatchString(v) {
		return true
	}
	for _, run := range digitRun.FindAllString(v, -1) {
		if suspiciousRun(run) {
			return true
		}
	}
	return false
}

// matchForm trims, applies NFKC, folds full-width digits and lowercases.
func matchForm(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return v
	}
	v = norm.NFKC.String(v)
	v = strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, v)
	return strings.ToLower(v)
}

func suspiciousRun(run string) bool {
	if len(run) >= 3 && allSame(run) {
		return true
	}
	if _, ok := canonicalRuns[run]; ok {
		return true
	}
	return len(run) >= 4 && (monotonic(run, 1) || monotonic(run, -1))
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

// monotonic reports whether every digit differs from the previous by step.
func monotonic(digits string, step int) bool {
	for i := 1; i < len(digits); i++ {
		if int(digits[i])-int(digits[i-1]) != step {
			return false
		}
	}
	return true
}

// Preview flattens newlines and tabs and caps the value at 120 runes.
func Preview(v string) string {
	flat := strings.NewReplacer("\n", `\n`, "\t", `\t`).Replace(v)
	runes := []rune(flat)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit-3]) + "..."
	}
	return flat
}
