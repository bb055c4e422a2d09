package loader

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"routeget/internal/model"
)

const testPrefix = "https://connect-api.duckdns.org/connectdata/"

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		url    string
		want   string
	}{
		{
			name:   "qlog_with_signature",
			prefix: testPrefix,
			url:    testPrefix + "qlog/3b58edf884ab4eaf/2024-06-13--15-59-30/0/qlog.bz2?sig=abc&exp=1",
			want:   "downloads/3b58edf884ab4eaf/2024-06-13--15-59-30/0/qlog.bz2",
		},
		{
			name:   "camera_kind_dir",
			prefix: testPrefix,
			url:    testPrefix + "fcamera/dev1/route1/3/fcamera.hevc",
			want:   "downloads/dev1/route1/3/fcamera.hevc",
		},
		{
			name:   "no_kind_dir",
			prefix: testPrefix,
			url:    testPrefix + "dev1/route1/0/qlog.bz2",
			want:   "downloads/dev1/route1/0/qlog.bz2",
		},
		{
			name:   "dongle_starting_with_prefix_chars",
			prefix: testPrefix,
			url:    testPrefix + "rlog/cafe0123456789ab/route1/0/rlog.bz2",
			want:   "downloads/cafe0123456789ab/route1/0/rlog.bz2",
		},
		{
			name:   "foreign_host",
			prefix: testPrefix,
			url:    "https://storage.example.com/dev1/route1/0/qcamera.ts?X-Amz=1",
			want:   "downloads/dev1/route1/0/qcamera.ts",
		},
		{
			name:   "dir_containing_stem_kept",
			prefix: testPrefix,
			url:    "https://storage.example.com/rlogs-archive/dev1/route1/0/rlog.bz2",
			want:   "downloads/rlogs-archive/dev1/route1/0/rlog.bz2",
		},
		{
			name:   "stem_alone_is_not_kind_dir",
			prefix: testPrefix,
			url:    testPrefix + "fcam/dev1/route1/0/fcamera.hevc",
			want:   "downloads/fcam/dev1/route1/0/fcamera.hevc",
		},
		{
			name:   "empty_prefix",
			prefix: "",
			url:    "http://127.0.0.1:8080/dev1/route1/0/rlog.bz2",
			want:   "downloads/dev1/route1/0/rlog.bz2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalPath("downloads", tt.prefix, tt.url)
			be.Err(t, err, nil)
			be.Equal(t, got, filepath.FromSlash(tt.want))

			// повторный вызов на том же URL даёт тот же путь
			again, _ := LocalPath("downloads", tt.prefix, tt.url)
			be.Equal(t, again, got)
		})
	}
}

func TestLocalPath_Injective(t *testing.T) {
	urls := []string{
		testPrefix + "qlog/dev1/route1/0/qlog.bz2",
		testPrefix + "qlog/dev1/route1/1/qlog.bz2",
		testPrefix + "rlog/dev1/route1/0/rlog.bz2",
		testPrefix + "qlog/dev2/route1/0/qlog.bz2",
		testPrefix + "qlog/dev1/route2/0/qlog.bz2",
	}

	seen := make(map[string]string)
	for _, u := range urls {
		path, err := LocalPath("downloads", testPrefix, u)
		be.Err(t, err, nil)
		if prev, ok := seen[path]; ok {
			t.Fatalf("%q and %q map to the same path %q", prev, u, path)
		}
		seen[path] = u
	}
}

func TestLocalPath_Escape(t *testing.T) {
	for _, u := range []string{
		testPrefix + "../../etc/passwd",
		testPrefix + "qlog/../../../etc/passwd",
		testPrefix,
		testPrefix + "?sig=only",
	} {
		_, err := LocalPath("downloads", testPrefix, u)
		be.True(t, errors.Is(err, model.ErrPathEscapesRoot))
	}
}
