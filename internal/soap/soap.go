// Package soap parses UPnP control requests and serializes response or
// fault envelopes, dispatching actions through a static handler table.
package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Error is a UPnP action fault. It travels through handler returns and is
// serialized as a SOAP fault envelope with HTTP status 500.
type Error struct {
	Code int
	Desc string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upnp error %d: %s", e.Code, e.Desc)
}

// Standard UPnP faults.
var (
	ErrInvalidAction   = &Error{Code: 401, Desc: "Invalid Action"}
	ErrInvalidArgs     = &Error{Code: 402, Desc: "Invalid Args"}
	ErrInvalidVar      = &Error{Code: 404, Desc: "Invalid Var"}
	ErrActionFailed    = &Error{Code: 501, Desc: "Action Failed"}
	ErrNoSuchObject    = &Error{Code: 701, Desc: "No such object error"}
	ErrBadSearch       = &Error{Code: 708, Desc: "Unsupported or invalid search criteria"}
	ErrBadSort         = &Error{Code: 709, Desc: "Unsupported or invalid sort criteria"}
	ErrNoSuchContainer = &Error{Code: 710, Desc: "No such container"}
)

// maxBodySize caps control request bodies.
const maxBodySize = 1 << 20

// Arguments holds the flat name/value pairs of an action request.
type Arguments map[string]string

// Get returns the named argument, or "" when absent.
func (a Arguments) Get(name string) string {
	return a[name]
}

// Has reports whether the argument was present at all.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Request is one decoded control request.
type Request struct {
	// Action is the fragment after '#' in the SOAPAction header.
	Action string
	// Args are the child elements of the action element.
	Args Arguments
	// Host is the Host header the request arrived with, for URL synthesis.
	Host string
	// Strict marks clients that negotiated strict DLNA behavior; they get
	// faults where lenient clients get empty results.
	Strict bool
}

// HandlerFunc produces the inner XML of a successful action response, or
// a *Error fault.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// ActionName extracts the action from a SOAPAction header value: the part
// after '#', with surrounding quotes stripped.
func ActionName(header string) string {
	header = strings.Trim(header, `"`)
	i := strings.IndexByte(header, '#')
	if i < 0 {
		return ""
	}
	return header[i+1:]
}

// ParseArguments decodes the action element's children from a SOAP request
// body into a flat map. Nested structure is not part of the
// ContentDirectory argument vocabulary.
func ParseArguments(body io.Reader) (Arguments, error) {
	dec := xml.NewDecoder(io.LimitReader(body, maxBodySize))
	args := Arguments{}
	var (
		depth   int
		current string
		text    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing soap body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// Envelope is depth 1, Body 2, action 3, arguments 4.
			if depth == 4 {
				current = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 4 && current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 4 && current != "" {
				args[current] = text.String()
				current = ""
			}
			depth--
		}
	}
	return args, nil
}

// Dispatcher routes decoded actions to registered handlers and writes the
// SOAP envelopes.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.With("component", "soap"),
	}
}

// Register binds an action name to its handler.
func (d *Dispatcher) Register(action string, h HandlerFunc) {
	d.handlers[action] = h
}

// ServeHTTP handles a POST to a control endpoint.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := ActionName(r.Header.Get("SOAPAction"))
	handler, ok := d.handlers[action]
	if !ok {
		d.logger.Warn("unknown soap action", "action", action)
		WriteFault(w, ErrInvalidAction)
		return
	}

	args, err := ParseArguments(r.Body)
	if err != nil {
		d.logger.Warn("malformed soap request", "action", action, "error", err)
		WriteFault(w, ErrInvalidArgs)
		return
	}

	req := &Request{
		Action: action,
		Args:   args,
		Host:   r.Host,
		Strict: r.Header.Get("uctt.upnp.org") != "",
	}
	d.logger.Debug("soap action", "action", action)

	body, err := handler(r.Context(), req)
	if err != nil {
		var soapErr *Error
		if !errors.As(err, &soapErr) {
			d.logger.Error("soap handler failed", "action", action, "error", err)
			soapErr = ErrActionFailed
		}
		WriteFault(w, soapErr)
		return
	}
	WriteResponse(w, body)
}

// WriteResponse wraps the handler's inner XML in a success envelope.
func WriteResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.Header().Set("EXT", "")
	io.WriteString(w, xml.Header)
	io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" `+
		`s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body>`)
	io.WriteString(w, body)
	io.WriteString(w, "</s:Body></s:Envelope>\r\n")
}

// WriteFault serializes a UPnPError fault envelope. Faults go out with
// HTTP status 500 per the UPnP architecture document.
func WriteFault(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" `+
		`s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><s:Fault>`+
		`<faultcode>s:Client</faultcode>`+
		`<faultstring>UPnPError</faultstring>`+
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`+
		`<errorCode>%d</errorCode>`+
		`<errorDescription>%s</errorDescription>`+
		`</UPnPError></detail>`+
		`</s:Fault></s:Body></s:Envelope>`, e.Code, e.Desc)
}

// Escape XML-escapes a string for embedding in a response body.
func Escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
