package model

type Device struct {
	DongleID string `json:"dongle_id"`
	IsOnline bool   `json:"is_online"`
}

type Route struct {
	Fullname string `json:"fullname"`
}

// UploadURL - подписанный адрес, на который устройство должно выгрузить файл.
type UploadURL struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}
