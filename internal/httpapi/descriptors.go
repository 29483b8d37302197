package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/upnp"
)

// Descriptors serves the device and service description documents.
type Descriptors struct {
	root []byte
}

// NewDescriptors renders the root descriptor once for the given device
// identity.
func NewDescriptors(dev config.DeviceConfig, udn string) (*Descriptors, error) {
	root, err := upnp.RootDescriptor(dev, udn)
	if err != nil {
		return nil, err
	}
	return &Descriptors{root: root}, nil
}

// Register mounts the descriptor routes.
func (d *Descriptors) Register(r chi.Router) {
	routes := map[string][]byte{
		upnp.RootDescPath:          d.root,
		upnp.ContentDirectoryPath:  []byte(upnp.ContentDirectorySCPD),
		upnp.ConnectionManagerPath: []byte(upnp.ConnectionManagerSCPD),
	}
	for path, body := range routes {
		handler := serveXML(body)
		r.Get(path, handler)
		r.Head(path, handler)
	}
}

func serveXML(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Server", upnp.ServerHeader())
		w.Write(body)
	}
}
