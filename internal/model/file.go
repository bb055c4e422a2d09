package model

// File - результат загрузки одного файла маршрута.
//
// Status содержит HTTP статус ответа, 0 если запрос не выполнялся
// (файл уже есть на диске или путь не удалось построить).
type File struct {
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Status   int    `json:"status,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

func (f File) Failed() bool {
	return !f.Skipped && f.ErrorMsg != ""
}
