package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type walkAction int

const (
	walkDescend walkAction = iota
	walkSkip
	walkStop
)

// scriptJSONBlocks decodes every <script> body that is a JSON document.
// Non-JSON scripts are skipped.
func scriptJSONBlocks(doc *goquery.Document) []any {
	var blocks []any
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		body := strings.TrimSpace(s.Text())
		if body == "" || (body[0] != '{' && body[0] != '[') {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return
		}
		blocks = append(blocks, v)
	})
	return blocks
}

// walk visits every object in root depth-first using an explicit stack.
// Array elements and object keys are visited in a stable order: array order,
// then sorted keys.
func walk(root any, visit func(node map[string]any) walkAction) bool {
	stack := []any{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := n.(type) {
		case map[string]any:
			switch visit(v) {
			case walkStop:
				return true
			case walkSkip:
				continue
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, v[keys[i]])
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, v[i])
			}
		}
	}
	return false
}

// lookup follows a path of object keys. Numeric segments index into arrays.
func lookup(node any, path ...string) any {
	cur := node
	for _, key := range path {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil
			}
			cur = v[i]
		default:
			return nil
		}
	}
	return cur
}

func lookupString(node any, path ...string) string {
	switch v := lookup(node, path...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func lookupNumber(node any, path ...string) (float64, bool) {
	switch v := lookup(node, path...).(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func lookupMap(node any, path ...string) map[string]any {
	m, _ := lookup(node, path...).(map[string]any)
	return m
}

func firstString(node any, paths ...[]string) string {
	for _, p := range paths {
		if s := lookupString(node, p...); s != "" {
			return s
		}
	}
	return ""
}
