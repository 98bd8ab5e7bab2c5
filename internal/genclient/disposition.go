// disposition.go — разбор имени файла из заголовка Content-Disposition.
// Backend отдаёт журналы сборки как attachment; имя файла может приходить
// в форме RFC 5987 (filename*) или обычной (filename="...").
package genclient

import (
	"mime"
	"net/url"
	"strings"
)

// ParseDispositionFilename извлекает имя файла из Content-Disposition.
// Возвращает пустую строку, если заголовок отсутствует или нечитаем —
// решение о fallback-имени принимает вызывающий.
func ParseDispositionFilename(disposition string) string {
	if disposition == "" {
		return ""
	}

	// mime.ParseMediaType понимает обе формы: filename и filename* (RFC 5987).
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}

	// Нестрогий fallback: backend встречался с незакавыченными значениями,
	// которые ParseMediaType отвергает.
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)

		if rest, ok := strings.CutPrefix(part, "filename*="); ok {
			// RFC 5987: UTF-8''percent-encoded
			if idx := strings.Index(rest, "''"); idx >= 0 {
				rest = rest[idx+2:]
			}
			rest = strings.Trim(rest, `"'`)
			if decoded, err := url.QueryUnescape(rest); err == nil {
				return decoded
			}
			return rest
		}

		if rest, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(rest, `"'`)
		}
	}

	return ""
}
