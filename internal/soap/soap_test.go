package soap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browseEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
 s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
 <s:Body>
  <u:Browse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">
   <ObjectID>0</ObjectID>
   <BrowseFlag>BrowseMetadata</BrowseFlag>
   <Filter>*</Filter>
   <StartingIndex>0</StartingIndex>
   <RequestedCount>10</RequestedCount>
   <SortCriteria/>
  </u:Browse>
 </s:Body>
</s:Envelope>`

func TestActionName(t *testing.T) {
	assert.Equal(t, "Browse",
		ActionName(`"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`))
	assert.Equal(t, "GetSystemUpdateID",
		ActionName("urn:schemas-upnp-org:service:ContentDirectory:1#GetSystemUpdateID"))
	assert.Empty(t, ActionName("no fragment here"))
	assert.Empty(t, ActionName(""))
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(strings.NewReader(browseEnvelope))
	require.NoError(t, err)

	assert.Equal(t, "0", args.Get("ObjectID"))
	assert.Equal(t, "BrowseMetadata", args.Get("BrowseFlag"))
	assert.Equal(t, "*", args.Get("Filter"))
	assert.Equal(t, "10", args.Get("RequestedCount"))
	assert.True(t, args.Has("SortCriteria"))
	assert.Empty(t, args.Get("SortCriteria"))
	assert.False(t, args.Has("ContainerID"))
}

func TestParseArguments_Malformed(t *testing.T) {
	_, err := ParseArguments(strings.NewReader("<unclosed"))
	assert.Error(t, err)
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcher_Success(t *testing.T) {
	d := newTestDispatcher()
	d.Register("Browse", func(_ context.Context, req *Request) (string, error) {
		assert.Equal(t, "0", req.Args.Get("ObjectID"))
		return "<u:BrowseResponse>ok</u:BrowseResponse>", nil
	})

	r := httptest.NewRequest(http.MethodPost, "/ctl/ContentDir", strings.NewReader(browseEnvelope))
	r.Header.Set("SOAPAction", `"urn:schemas-upnp-org:service:ContentDirectory:1#Browse"`)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	body := w.Body.String()
	assert.Contains(t, body, "<s:Envelope")
	assert.Contains(t, body, "<u:BrowseResponse>ok</u:BrowseResponse>")
	assert.True(t, strings.HasSuffix(body, "</s:Body></s:Envelope>\r\n"))
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := newTestDispatcher()
	r := httptest.NewRequest(http.MethodPost, "/ctl/ContentDir", strings.NewReader(browseEnvelope))
	r.Header.Set("SOAPAction", `"urn:x#NoSuchAction"`)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>401</errorCode>")
	assert.Contains(t, w.Body.String(), "<errorDescription>Invalid Action</errorDescription>")
}

func TestDispatcher_HandlerFault(t *testing.T) {
	d := newTestDispatcher()
	d.Register("Browse", func(context.Context, *Request) (string, error) {
		return "", ErrNoSuchObject
	})

	r := httptest.NewRequest(http.MethodPost, "/ctl/ContentDir", strings.NewReader(browseEnvelope))
	r.Header.Set("SOAPAction", `"urn:x#Browse"`)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>701</errorCode>")
}

func TestDispatcher_InternalErrorBecomesActionFailed(t *testing.T) {
	d := newTestDispatcher()
	d.Register("Browse", func(context.Context, *Request) (string, error) {
		return "", assert.AnError
	})

	r := httptest.NewRequest(http.MethodPost, "/ctl/ContentDir", strings.NewReader(browseEnvelope))
	r.Header.Set("SOAPAction", `"urn:x#Browse"`)
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)

	assert.Contains(t, w.Body.String(), "<errorCode>501</errorCode>")
}

func TestDispatcher_StrictFlag(t *testing.T) {
	d := newTestDispatcher()
	var strict bool
	d.Register("Browse", func(_ context.Context, req *Request) (string, error) {
		strict = req.Strict
		return "<ok/>", nil
	})

	r := httptest.NewRequest(http.MethodPost, "/ctl/ContentDir", strings.NewReader(browseEnvelope))
	r.Header.Set("SOAPAction", `"urn:x#Browse"`)
	r.Header.Set("uctt.upnp.org", "1")
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)
	assert.True(t, strict)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt;", Escape(`a & b <c>`))
}
