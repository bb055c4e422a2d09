package model

import (
	"fmt"
	"strings"
)

type Category string

const (
	Cameras  Category = "cameras"
	QCameras Category = "qcameras"
	Logs     Category = "logs"
	QLogs    Category = "qlogs"
	ECameras Category = "ecameras"
	DCameras Category = "dcameras"
)

// CategoryInfo связывает ключ корзины в ответе бэкенда с основой имени файла
// на устройстве, расширением, которое нужно добавить при запросе загрузки,
// и каталогом вида в хранилище бэкенда.
type CategoryInfo struct {
	Category   Category
	Stem       string
	Suffix     string
	StorageDir string
}

// Categories - единственная таблица категорий. Порядок таблицы задаёт порядок
// обхода корзин при обнаружении файлов.
var Categories = []CategoryInfo{
	{Category: Cameras, Stem: "fcam", Suffix: ".hevc", StorageDir: "fcamera"},
	{Category: QCameras, Stem: "qcam", Suffix: ".ts", StorageDir: "qcamera"},
	{Category: Logs, Stem: "rlog", Suffix: ".bz2", StorageDir: "rlog"},
	{Category: QLogs, Stem: "qlog", Suffix: ".bz2", StorageDir: "qlog"},
	{Category: ECameras, Stem: "ecam", Suffix: ".hevc", StorageDir: "ecamera"},
	{Category: DCameras, Stem: "dcam", Suffix: ".hevc", StorageDir: "dcamera"},
}

// CategoryByStem возвращает первую категорию, основа которой входит в name.
func CategoryByStem(name string) (CategoryInfo, bool) {
	for _, ci := range Categories {
		if strings.Contains(name, ci.Stem) {
			return ci, true
		}
	}
	return CategoryInfo{}, false
}

// CategoryByStorageDir ищет категорию по точному имени каталога вида в хранилище.
func CategoryByStorageDir(dir string) (CategoryInfo, bool) {
	for _, ci := range Categories {
		if ci.StorageDir == dir {
			return ci, true
		}
	}
	return CategoryInfo{}, false
}

// NormalizeUploadName дополняет имя файла расширением его категории.
// Имена без известной основы возвращаются как есть.
//
// Примеры:
//
//	"rlog0" -> "rlog0.bz2"
//	"qcamera" -> "qcamera.ts"
//	"rlog.bz2" -> "rlog.bz2"
//	"boot" -> "boot"
func NormalizeUploadName(name string) string {
	ci, ok := CategoryByStem(name)
	if !ok || strings.HasSuffix(name, ci.Suffix) {
		return name
	}
	return name + ci.Suffix
}

type CategorySet map[Category]bool

func AllCategories() CategorySet {
	set := make(CategorySet, len(Categories))
	for _, ci := range Categories {
		set[ci.Category] = true
	}
	return set
}

// ParseCategories принимает имена категорий, разделённые пробелами или запятыми.
// Пустой список означает все категории.
func ParseCategories(names []string) (CategorySet, error) {
	set := make(CategorySet)
	for _, s := range names {
		for _, name := range strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			c := Category(strings.ToLower(name))
			if !isKnown(c) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
			}
			set[c] = true
		}
	}
	if len(set) == 0 {
		return AllCategories(), nil
	}
	return set, nil
}

func Lookup(c Category) (CategoryInfo, bool) {
	for _, ci := range Categories {
		if ci.Category == c {
			return ci, true
		}
	}
	return CategoryInfo{}, false
}

func isKnown(c Category) bool {
	_, ok := Lookup(c)
	return ok
}

// RouteFiles - корзины файлов маршрута по категориям. Отсутствующий ключ
// эквивалентен пустому списку.
type RouteFiles map[Category][]string
