package httpapi

import (
	"fmt"
	"net/http"

	"github.com/jmylchreest/dlnad/internal/upnp"
)

// htmlError writes the minimal HTML error page renderers expect.
func htmlError(w http.ResponseWriter, code int) {
	text := http.StatusText(code)
	w.Header().Set("Content-Type", `text/html; charset="utf-8"`)
	w.Header().Set("Server", upnp.ServerHeader())
	w.WriteHeader(code)
	fmt.Fprintf(w, "<HTML><HEAD><TITLE>%d %s</TITLE></HEAD><BODY><H1>%s</H1></BODY></HTML>\r\n",
		code, text, text)
}
