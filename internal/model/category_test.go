package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestNormalizeUploadName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "rlog", input: "rlog", want: "rlog.bz2"},
		{name: "qlog", input: "qlog", want: "qlog.bz2"},
		{name: "qcam", input: "qcamera", want: "qcamera.ts"},
		{name: "fcam", input: "fcamera", want: "fcamera.hevc"},
		{name: "dcam", input: "dcamera", want: "dcamera.hevc"},
		{name: "ecam", input: "ecamera", want: "ecamera.hevc"},
		{name: "segment_path", input: "2024-06-13--15-59-30--0/rlog", want: "2024-06-13--15-59-30--0/rlog.bz2"},
		{name: "numbered", input: "rlog0", want: "rlog0.bz2"},
		{name: "already_normalized", input: "rlog.bz2", want: "rlog.bz2"},
		{name: "unknown_stem", input: "bootlog", want: "bootlog"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be.Equal(t, NormalizeUploadName(tt.input), tt.want)
		})
	}
}

func TestCategoryTable(t *testing.T) {
	// ни одна основа не должна входить в другую, иначе порядок таблицы начнёт влиять на результат
	for i, a := range Categories {
		for j, b := range Categories {
			if i != j && strings.Contains(a.Stem, b.Stem) {
				t.Fatalf("stem %q overlaps %q", a.Stem, b.Stem)
			}
		}
	}

	for _, ci := range Categories {
		got, ok := CategoryByStem(ci.Stem)
		be.True(t, ok)
		be.Equal(t, got.Category, ci.Category)
	}
}

func TestCategoryByStorageDir(t *testing.T) {
	for _, dir := range []string{"fcamera", "qcamera", "rlog", "qlog", "ecamera", "dcamera"} {
		_, ok := CategoryByStorageDir(dir)
		be.True(t, ok)
	}
	for _, dir := range []string{"rlogs-archive", "fcam", "qlogs", "", "3b58edf884ab4eaf"} {
		_, ok := CategoryByStorageDir(dir)
		be.True(t, !ok)
	}
}

func TestParseCategories(t *testing.T) {
	t.Run("default_all", func(t *testing.T) {
		set, err := ParseCategories(nil)
		be.Err(t, err, nil)
		be.Equal(t, len(set), 6)
	})

	t.Run("comma_and_space", func(t *testing.T) {
		set, err := ParseCategories([]string{"cameras,qlogs", "logs"})
		be.Err(t, err, nil)
		be.Equal(t, set, CategorySet{Cameras: true, QLogs: true, Logs: true})
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseCategories([]string{"cameras", "videos"})
		be.True(t, errors.Is(err, ErrUnknownCategory))
	})
}

func TestSummarize(t *testing.T) {
	files := []File{
		{URL: "a", Status: 200, Size: 10},
		{URL: "b", Skipped: true},
		{URL: "c", Status: 404, ErrorMsg: "Not Found"},
		{URL: "d", Status: 200, Size: 5},
	}
	be.Equal(t, Summarize(files), Summary{Total: 4, Downloaded: 2, Skipped: 1, Failed: 1, Bytes: 15})
}
