package models

// Asset is a stored overlay or photo as exposed to clients.
type Asset struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// PhotoResult is returned after a photo has been recorded.
type PhotoResult struct {
	PhotoURL  string `json:"photoUrl" yaml:"photoUrl"`
	QRDataURL string `json:"qrDataUrl" yaml:"qrDataUrl"`
	TargetURL string `json:"targetUrl" yaml:"targetUrl"`
}

type OverlayList struct {
	Overlays []Asset `json:"overlays" yaml:"overlays"`
}

type UploadResult struct {
	Uploaded []Asset `json:"uploaded" yaml:"uploaded"`
}

type Status struct {
	OK bool `json:"ok" yaml:"ok"`
}

type ErrorBody struct {
	Error string `json:"error" yaml:"error"`
}
