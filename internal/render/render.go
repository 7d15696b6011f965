// internal/render/render.go
package render

import (
	"strings"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// Render substitutes {Key} placeholders from ctx into template in a single
// pass. Doubled braces ("{{", "}}") are literals. A key absent from ctx fails
// with appErrors.ErrMissingPlaceholder naming that key; malformed placeholder
// syntax fails with appErrors.ErrRender. No nesting, loops or conditionals.
func Render(template string, ctx map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", appErrors.NewRender("unclosed placeholder '{'")
			}
			key := template[i+1 : i+1+end]
			if key == "" {
				return "", appErrors.NewRender("empty placeholder '{}'")
			}
			if strings.ContainsRune(key, '{') {
				return "", appErrors.NewRender("nested '{' inside placeholder")
			}
			value, ok := ctx[key]
			if !ok {
				return "", appErrors.NewMissingPlaceholder(key)
			}
			b.WriteString(value)
			i += end + 2
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", appErrors.NewRender("single '}' outside placeholder")
		default:
			b.WriteByte(template[i])
			i++
		}
	}
	return b.String(), nil
}

// Pair renders a subject/body template pair against one context. Either
// failure fails the pair; callers treat that as a per-recipient failure.
func Pair(subjectTemplate, bodyTemplate string, ctx map[string]string) (subject, body string, err error) {
	subject, err = Render(subjectTemplate, ctx)
	if err != nil {
		return "", "", err
	}
	body, err = Render(bodyTemplate, ctx)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
