package model

import (
	"slices"
	"time"
)

type Summary struct {
	Total      int   `json:"total"`
	Downloaded int   `json:"downloaded"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

type UploadStats struct {
	Requested int `json:"requested"`
	Failed    int `json:"failed"`
}

// Report - итог одного прохода.
type Report struct {
	ID         int64       `json:"id"`
	StartedAt  time.Time   `json:"started_at,omitzero"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Devices    int         `json:"devices"`
	Routes     int         `json:"routes"`
	Uploads    UploadStats `json:"uploads"`
	Summary    Summary     `json:"summary"`
	Files      []File      `json:"files,omitempty"`
	ErrorMsg   string      `json:"error_msg,omitempty"`
}

func (r Report) Clone() Report {
	c := r
	c.Files = slices.Clone(r.Files)
	return c
}

func Summarize(files []File) Summary {
	s := Summary{Total: len(files)}
	for _, f := range files {
		switch {
		case f.Skipped:
			s.Skipped++
		case f.Failed():
			s.Failed++
		default:
			s.Downloaded++
			s.Bytes += f.Size
		}
	}
	return s
}
