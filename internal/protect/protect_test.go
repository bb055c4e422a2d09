package protect

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestWithinRoot(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		want string
		fail bool
	}{
		{name: "segment_file", rel: "dev1/route1/0/qlog.bz2", want: filepath.Join("downloads", "dev1", "route1", "0", "qlog.bz2")},
		{name: "leading_slash", rel: "/dev1/rlog.bz2", want: filepath.Join("downloads", "dev1", "rlog.bz2")},
		{name: "inner_dots", rel: "dev1/../dev2/rlog.bz2", want: filepath.Join("downloads", "dev2", "rlog.bz2")},
		{name: "escape", rel: "../etc/passwd", fail: true},
		{name: "deep_escape", rel: "dev1/../../../etc/passwd", fail: true},
		{name: "root_itself", rel: "dev1/..", fail: true},
		{name: "empty", rel: "", fail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithinRoot("downloads", tt.rel)
			if tt.fail {
				be.True(t, errors.Is(err, ErrPathEscapesRoot))
				return
			}
			be.Err(t, err, nil)
			be.Equal(t, got, tt.want)
		})
	}
}
