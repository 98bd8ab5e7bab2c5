// Пакет static — встроенные статические ресурсы Dashboard UI.
// Содержит HTML-оболочку дашборда, CSS и JS polling-клиента.
// Файлы встраиваются в бинарник через //go:embed и раздаются через HTTP.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

// content — встроенная файловая система со всеми статическими ресурсами.
//
//go:embed index.html css/*.css js/*.js
var content embed.FS

// FileSystem возвращает http.FileSystem для обработки запросов к /ui/static/*.
func FileSystem() http.FileSystem {
	return http.FS(content)
}

// FS возвращает fs.FS для прямого доступа к встроенным файлам.
func FS() fs.FS {
	return content
}

// Index возвращает содержимое HTML-оболочки дашборда.
func Index() ([]byte, error) {
	return content.ReadFile("index.html")
}
