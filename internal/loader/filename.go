package loader

import (
	"net/url"
	"strings"

	"routeget/internal/model"
	"routeget/internal/protect"
)

// LocalPath строит локальный путь файла маршрута:
//
//   - отрезает префикс хранилища (prefix), либо, если URL с ним не совпадает, схему и хост;
//   - обрезает query (подпись);
//   - удаляет каталог вида хранилища ("qlog", "fcamera", ...), если путь с него начинается;
//   - размещает остаток под root, не позволяя выйти за его пределы.
//
// Примеры (prefix = "https://host/connectdata/", root = "downloads"):
//
//	"https://host/connectdata/qlog/dev1/2024-06-13--15-59-30/0/qlog.bz2?sig=x" -> "downloads/dev1/2024-06-13--15-59-30/0/qlog.bz2"
//	"https://other/dev1/route1/0/rlog.bz2" -> "downloads/dev1/route1/0/rlog.bz2"
func LocalPath(root, prefix, uri string) (string, error) {
	rel, ok := strings.CutPrefix(uri, prefix)
	if !ok || prefix == "" {
		rel = stripHost(uri)
	}

	if p := strings.IndexByte(rel, '?'); p != -1 {
		rel = rel[:p]
	}
	rel = strings.TrimLeft(rel, "/")

	if kind, rest, found := strings.Cut(rel, "/"); found && isStorageKind(kind) {
		rel = rest
	}

	return protect.WithinRoot(root, rel)
}

func stripHost(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.EscapedPath()
}

// isStorageKind сообщает, является ли элемент пути каталогом вида хранилища.
// Сравнение точное: "rlogs-archive" каталогом вида не считается.
func isStorageKind(elem string) bool {
	_, ok := model.CategoryByStorageDir(elem)
	return ok
}

// trimQuery убирает подпись из URL перед записью в лог.
func trimQuery(uri string) string {
	if p := strings.IndexByte(uri, '?'); p != -1 {
		return uri[:p]
	}
	return uri
}
