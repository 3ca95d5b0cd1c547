package htmltable

import (
	"encoding/base64"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
)

var (
	reVarA      = regexp.MustCompile(`\bvar\s+a\s*=\s*'([^']*)'`)
	reClassAttr = regexp.MustCompile(`\bclass\s*=\s*"([^"]+)"`)
	reEmail     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// emailFromCell recovers an address hidden by one of two common
// obfuscations: a data-cfemail attribute, or an inline script assigning the
// address to var a with directives in base64 JSON class tokens. It returns
// "" when neither applies.
func emailFromCell(cell *goquery.Selection) string {
	if v, ok := cell.Find("[data-cfemail]").First().Attr("data-cfemail"); ok {
		if addr := decodeCFEmail(v); addr != "" {
			return addr
		}
	}
	var addr string
	cell.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		addr = decodeScriptEmail(s.Text())
		return addr == ""
	})
	return addr
}

// decodeCFEmail decodes hex where the first byte is the XOR key for the rest.
func decodeCFEmail(encoded string) string {
	b, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(b) < 2 {
		return ""
	}
	key := b[0]
	out := make([]byte, len(b)-1)
	for i, c := range b[1:] {
		out[i] = c ^ key
	}
	if s := string(out); reEmail.MatchString(s) {
		return s
	}
	return ""
}

type directives struct {
	rot13    bool
	removals []string
	subst    map[rune]rune // obfuscated -> real
}

// decodeScriptEmail applies, in order: HTML unescape, rmv removals,
// single-character substitutions, rot13. mailto: is stripped before and
// after since rot13 can reveal it late.
func decodeScriptEmail(script string) string {
	m := reVarA.FindStringSubmatch(script)
	if len(m) != 2 {
		return ""
	}
	email := strings.TrimPrefix(strings.TrimSpace(html.UnescapeString(m[1])), "mailto:")

	d := parseDirectives(script)
	for _, rm := range d.removals {
		email = strings.ReplaceAll(email, rm, "")
	}
	if len(d.subst) > 0 {
		email = strings.Map(func(r rune) rune {
			if orig, ok := d.subst[r]; ok {
				return orig
			}
			return r
		}, email)
	}
	if d.rot13 {
		email = rot13(email)
	}
	email = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(email), "mailto:"))
	if reEmail.MatchString(email) {
		return email
	}
	return ""
}

// parseDirectives only looks at class attributes that mark the e-mail
// element, to avoid reading ordinary CSS classes as tokens.
func parseDirectives(script string) directives {
	d := directives{subst: map[rune]rune{}}
	for _, ca := range reClassAttr.FindAllStringSubmatch(script, -1) {
		class := ca[1]
		if !strings.Contains(class, "email") && !strings.Contains(class, "required") {
			continue
		}
		for _, tok := range strings.Fields(class) {
			if len(tok) < 8 || len(tok) > 80 {
				continue
			}
			obj, ok := decodeToken(tok)
			if !ok {
				continue
			}
			for k, v := range obj {
				switch k {
				case "rot":
					d.rot13 = d.rot13 || v == "it"
				case "rmv":
					if v != "" {
						d.removals = append(d.removals, v)
					}
				default:
					// {"h":"m"}: real h was written as m.
					kr, vr := []rune(k), []rune(v)
					if len(kr) == 1 && len(vr) == 1 {
						d.subst[vr[0]] = kr[0]
					}
				}
			}
		}
	}
	return d
}

func decodeToken(tok string) (map[string]string, bool) {
	if n := len(tok) % 4; n != 0 {
		tok += strings.Repeat("=", 4-n)
	}
	b, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		if b, err = base64.URLEncoding.DecodeString(tok); err != nil {
			return nil, false
		}
	}
	var obj map[string]string
	if err := json.Unmarshal(b, &obj); err != nil || len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}
