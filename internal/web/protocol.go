package web

import (
	"encoding/base64"
	"encoding/json"

	"github.com/taigrr/stlview/pkg/viewer"
)

// Client message types.
const (
	msgFile    = "file"
	msgControl = "control"
	msgReset   = "reset"
	msgOrbit   = "orbit"
	msgZoom    = "zoom"
	msgPan     = "pan"
	msgResize  = "resize"
	msgOpen    = "open"
)

// Server message types.
const (
	msgHello            = "hello"
	msgStatus           = "status"
	msgError            = "error"
	msgProgress         = "progress"
	msgThumbnail        = "thumbnail"
	msgThumbnailExpired = "thumbnail_expired"
)

// clientMessage is any JSON message a page sends. Which fields are set
// depends on Type.
type clientMessage struct {
	Type string `json:"type"`

	// file, control
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`

	// control
	Value json.RawMessage `json:"value,omitempty"`

	// orbit, pan
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// zoom
	Delta float64 `json:"delta,omitempty"`

	// resize
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// open
	ID string `json:"id,omitempty"`
}

type helloMessage struct {
	Type    string        `json:"type"`
	Session string        `json:"session"`
	Params  paramsMessage `json:"params"`
}

type paramsMessage struct {
	Color       string  `json:"color"`
	Wireframe   bool    `json:"wireframe"`
	Scale       float64 `json:"scale"`
	Ambient     float64 `json:"ambient"`
	Directional float64 `json:"directional"`
}

type statusMessage struct {
	Type      string `json:"type"`
	Loaded    bool   `json:"loaded"`
	Name      string `json:"name,omitempty"`
	Triangles int    `json:"triangles"`
	Text      string `json:"text"`
}

func newStatusMessage(st viewer.Status) statusMessage {
	return statusMessage{
		Type:      msgStatus,
		Loaded:    st.Loaded,
		Name:      st.Name,
		Triangles: st.Triangles,
		Text:      st.Text,
	}
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type progressMessage struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Read  int64  `json:"read"`
	Total int64  `json:"total"`
}

type thumbnailMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Size    int    `json:"size,omitempty"`
	Preview string `json:"preview,omitempty"` // data: URL of a PNG
}

func newThumbnailMessage(th viewer.Thumbnail) thumbnailMessage {
	msg := thumbnailMessage{
		Type: msgThumbnail,
		ID:   th.ID.String(),
		Name: th.Name,
		Size: len(th.Data),
	}
	if len(th.Preview) > 0 {
		msg.Preview = "data:image/png;base64," + base64.StdEncoding.EncodeToString(th.Preview)
	}
	return msg
}
