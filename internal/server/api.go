package server

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"time"

	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
)

// Frame message kinds on /ws/frames.
const (
	KindRGBA byte = 1
	KindJPEG byte = 2
)

const headerSize = 9

type deviceResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Backend string `json:"backend"`
	Type    string `json:"type"`
}

type statusResponse struct {
	State      string  `json:"state"`
	Device     string  `json:"device,omitempty"`
	DeviceID   string  `json:"device_id,omitempty"`
	Format     string  `json:"format,omitempty"`
	Mode       string  `json:"mode"`
	Decode     string  `json:"decode"`
	Mirror     bool    `json:"mirror"`
	IntervalMS float64 `json:"interval_ms"`
	Frames     uint64  `json:"frames"`
	Errors     uint64  `json:"errors"`
	LastFrame  string  `json:"last_frame,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
	Clients    int     `json:"clients"`
}

func (s *Server) listDevices(c *gin.Context) {
	s.stateMu.RLock()
	devices := make([]deviceResponse, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, deviceResponse{
			ID:      d.ID,
			Name:    d.Name,
			Index:   d.Index,
			Backend: d.Backend,
			Type:    d.DeviceType.String(),
		})
	}
	s.stateMu.RUnlock()

	c.JSON(http.StatusOK, jsend.Success(devices))
}

func (s *Server) getStatus(c *gin.Context) {
	s.stateMu.RLock()
	resp := newStatusResponse(s.status)
	s.stateMu.RUnlock()
	resp.Clients = s.ClientCount()

	c.JSON(http.StatusOK, jsend.Success(resp))
}

func newStatusResponse(st stream.Status) statusResponse {
	resp := statusResponse{
		State:      st.State.String(),
		Mode:       st.Mode.String(),
		Decode:     st.Policy.String(),
		Mirror:     st.Mirror,
		IntervalMS: float64(st.Interval) / float64(time.Millisecond),
		Frames:     st.Stats.Frames,
		Errors:     st.Stats.Errors,
	}
	if st.State == stream.Open {
		resp.Device = st.Device.Name
		resp.DeviceID = st.Device.ID
		resp.Format = st.Format.String()
	}
	if !st.Stats.LastFrame.IsZero() {
		resp.LastFrame = st.Stats.LastFrame.Format(time.RFC3339Nano)
	}
	if st.Stats.LastError != nil {
		resp.LastError = st.Stats.LastError.Error()
	}
	return resp
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
}

// encodePicture builds one websocket message: a kind byte, big endian
// width and height, then the payload. MJPEG frames kept raw are sent
// as-is for the browser to decode; everything else is sent as RGBA.
func encodePicture(pic frame.Picture) ([]byte, error) {
	if pic.RGBA == nil && pic.Frame.Format == camera.FormatMJPEG {
		if len(pic.Frame.Data) == 0 {
			return nil, fmt.Errorf("empty jpeg frame")
		}
		return packFrame(KindJPEG, pic.Frame.Width, pic.Frame.Height, pic.Frame.Data), nil
	}

	buf, err := pic.Image()
	if err != nil {
		return nil, err
	}
	return packFrame(KindRGBA, buf.Width, buf.Height, buf.Pix), nil
}

func packFrame(kind byte, width, height int, payload []byte) []byte {
	msg := make([]byte, headerSize+len(payload))
	msg[0] = kind
	binary.BigEndian.PutUint32(msg[1:5], uint32(width))
	binary.BigEndian.PutUint32(msg[5:9], uint32(height))
	copy(msg[headerSize:], payload)
	return msg
}
