package cds

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/jmylchreest/dlnad/internal/didl"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/soap"
)

// Service URNs.
const (
	ContentDirectoryURN  = "urn:schemas-upnp-org:service:ContentDirectory:1"
	ConnectionManagerURN = "urn:schemas-upnp-org:service:ConnectionManager:1"
)

// Capability strings advertised by the getters.
const (
	searchCapabilities = "dc:creator,dc:date,dc:title,upnp:album,upnp:actor," +
		"upnp:artist,upnp:class,upnp:genre,@id,@parentID,@refID"
	sortCapabilities = "dc:title,dc:date,upnp:class,upnp:album,upnp:originalTrackNumber"
)

// sourceProtocolInfo is the ConnectionManager source protocol list. One
// entry per MIME type the catalog can serve.
var sourceProtocolInfo = strings.Join([]string{
	"http-get:*:video/mpeg:*",
	"http-get:*:video/vnd.dlna.mpeg-tts:*",
	"http-get:*:video/mp4:*",
	"http-get:*:video/x-msvideo:*",
	"http-get:*:video/x-ms-wmv:*",
	"http-get:*:video/x-matroska:*",
	"http-get:*:video/x-flv:*",
	"http-get:*:video/quicktime:*",
	"http-get:*:video/3gpp:*",
}, ",")

// Service answers the ContentDirectory and ConnectionManager actions.
type Service struct {
	objects  repository.ObjectRepository
	captions repository.CaptionRepository
	port     int
	maxResp  int
	updateID func() uint32
	logger   *slog.Logger
}

// New creates a Service. maxResponse caps the DIDL response buffer in
// bytes; zero means unbounded. updateID supplies the published
// SystemUpdateID value.
func New(
	objects repository.ObjectRepository,
	captions repository.CaptionRepository,
	port int,
	maxResponse int,
	updateID func() uint32,
	logger *slog.Logger,
) *Service {
	return &Service{
		objects:  objects,
		captions: captions,
		port:     port,
		maxResp:  maxResponse,
		updateID: updateID,
		logger:   logger.With("component", "cds"),
	}
}

// Register binds every action the service answers onto the dispatcher.
func (s *Service) Register(d *soap.Dispatcher) {
	d.Register("Browse", s.Browse)
	d.Register("Search", s.Search)
	d.Register("GetSystemUpdateID", s.GetSystemUpdateID)
	d.Register("GetSearchCapabilities", s.GetSearchCapabilities)
	d.Register("GetSortCapabilities", s.GetSortCapabilities)
	d.Register("GetProtocolInfo", s.GetProtocolInfo)
	d.Register("GetCurrentConnectionIDs", s.GetCurrentConnectionIDs)
	d.Register("GetCurrentConnectionInfo", s.GetCurrentConnectionInfo)
	d.Register("QueryStateVariable", s.QueryStateVariable)
}

// renderer builds a DIDL renderer bound to the address the request
// arrived on, so URLs point back at the right interface.
func (s *Service) renderer(reqHost string) *didl.Renderer {
	host := reqHost
	if h, _, err := net.SplitHostPort(reqHost); err == nil {
		host = h
	}
	return didl.NewRenderer(host, s.port)
}

// nonNegative parses a numeric argument, faulting on malformed or
// negative values. A missing argument is zero.
func nonNegative(args soap.Arguments, name string) (int, error) {
	raw := args.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, soap.ErrInvalidArgs
	}
	return n, nil
}

// Browse answers the ContentDirectory Browse action.
func (s *Service) Browse(ctx context.Context, req *soap.Request) (string, error) {
	objectID := req.Args.Get("ObjectID")
	if objectID == "" {
		objectID = req.Args.Get("ContainerID")
	}
	if objectID == "" {
		return "", soap.ErrInvalidArgs
	}

	start, err := nonNegative(req.Args, "StartingIndex")
	if err != nil {
		return "", err
	}
	count, err := nonNegative(req.Args, "RequestedCount")
	if err != nil {
		return "", err
	}
	filter := didl.ParseFilter(req.Args.Get("Filter"))
	r := s.renderer(req.Host)

	switch req.Args.Get("BrowseFlag") {
	case "BrowseMetadata":
		return s.browseMetadata(ctx, r, objectID, filter)
	case "BrowseDirectChildren":
		return s.browseChildren(ctx, r, req, objectID, filter, start, count)
	default:
		return "", soap.ErrInvalidArgs
	}
}

func (s *Service) browseMetadata(ctx context.Context, r *didl.Renderer, objectID string, filter didl.Filter) (string, error) {
	obj, err := s.objects.GetByObjectID(ctx, objectID)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", soap.ErrNoSuchObject
	}

	opts := didl.ItemOptions{RootMetadata: objectID == models.RootID, ChildCount: -1}
	if obj.IsContainer() && filter&didl.FilterChildCount != 0 {
		if opts.ChildCount, err = s.objects.CountChildren(ctx, objectID); err != nil {
			return "", err
		}
	}
	if err := s.fillCaption(ctx, obj, filter, &opts); err != nil {
		return "", err
	}

	buf := didl.NewBuffer(s.maxResp)
	r.Begin(buf, filter)
	r.Object(buf, obj, filter, opts)
	r.End(buf)
	if buf.Err() != nil {
		return "", buf.Err()
	}
	return browseResponse("Browse", buf.String(), 1, 1, s.updateID()), nil
}

func (s *Service) browseChildren(ctx context.Context, r *didl.Renderer, req *soap.Request, objectID string, filter didl.Filter, start, count int) (string, error) {
	order, err := TranslateSort(req.Args.Get("SortCriteria"), req.Strict)
	if err != nil {
		s.logger.Warn("rejecting sort criteria",
			"criteria", req.Args.Get("SortCriteria"), "error", err)
		return "", soap.ErrBadSort
	}

	children, total, err := s.objects.ListChildren(ctx, objectID, order, start, count)
	if err != nil {
		return "", err
	}
	if total == 0 {
		obj, err := s.objects.GetByObjectID(ctx, objectID)
		if err != nil {
			return "", err
		}
		if obj == nil {
			return "", soap.ErrNoSuchObject
		}
	}

	body, returned, err := s.renderSet(ctx, r, children, filter)
	if err != nil {
		return "", err
	}
	return browseResponse("Browse", body, returned, total, s.updateID()), nil
}

// Search answers the ContentDirectory Search action.
func (s *Service) Search(ctx context.Context, req *soap.Request) (string, error) {
	containerID := req.Args.Get("ContainerID")
	if containerID == "" {
		return "", soap.ErrInvalidArgs
	}
	start, err := nonNegative(req.Args, "StartingIndex")
	if err != nil {
		return "", err
	}
	count, err := nonNegative(req.Args, "RequestedCount")
	if err != nil {
		return "", err
	}

	if containerID != models.RootID && containerID != "*" {
		container, err := s.objects.GetByObjectID(ctx, containerID)
		if err != nil {
			return "", err
		}
		if container == nil {
			return "", soap.ErrNoSuchContainer
		}
	}

	where, whereArgs, err := TranslateSearch(req.Args.Get("SearchCriteria"))
	if err != nil {
		s.logger.Warn("rejecting search criteria",
			"criteria", req.Args.Get("SearchCriteria"), "error", err)
		return "", soap.ErrBadSearch
	}
	order, err := TranslateSort(req.Args.Get("SortCriteria"), req.Strict)
	if err != nil {
		return "", soap.ErrBadSort
	}

	matches, total, err := s.objects.Search(ctx, repository.SearchQuery{
		ContainerID: containerID,
		Where:       where,
		Args:        whereArgs,
		Order:       order,
		Offset:      start,
		Limit:       count,
	})
	if err != nil {
		return "", err
	}

	filter := didl.ParseFilter(req.Args.Get("Filter"))
	body, returned, err := s.renderSet(ctx, s.renderer(req.Host), matches, filter)
	if err != nil {
		return "", err
	}
	return browseResponse("Search", body, returned, total, s.updateID()), nil
}

// renderSet renders a page of objects, truncating at the response cap
// while keeping the document well-formed.
func (s *Service) renderSet(ctx context.Context, r *didl.Renderer, objs []*models.Object, filter didl.Filter) (string, int, error) {
	buf := didl.NewBuffer(s.maxResp)
	r.Begin(buf, filter)

	returned := 0
	for _, obj := range objs {
		opts := didl.ItemOptions{ChildCount: -1}
		if obj.IsContainer() && filter&didl.FilterChildCount != 0 {
			n, err := s.objects.CountChildren(ctx, obj.ObjectID)
			if err != nil {
				return "", 0, err
			}
			opts.ChildCount = n
		}
		if err := s.fillCaption(ctx, obj, filter, &opts); err != nil {
			return "", 0, err
		}

		mark := buf.Mark()
		r.Object(buf, obj, filter, opts)
		if buf.Err() != nil {
			buf.Rewind(mark)
			s.logger.Warn("didl response truncated", "returned", returned)
			break
		}
		returned++
	}

	r.End(buf)
	if buf.Err() != nil {
		return "", 0, buf.Err()
	}
	return buf.String(), returned, nil
}

func (s *Service) fillCaption(ctx context.Context, obj *models.Object, filter didl.Filter, opts *didl.ItemOptions) error {
	if filter&didl.FilterSecCaptionInfoEx == 0 || obj.IsContainer() || obj.DetailID == nil {
		return nil
	}
	caption, err := s.captions.GetByDetailID(ctx, *obj.DetailID)
	if err != nil {
		return err
	}
	opts.HasCaption = caption != nil
	return nil
}

// browseResponse wraps a rendered DIDL document in the action response
// element. The Result payload is escaped exactly once.
func browseResponse(action, didlDoc string, returned int, total int64, updateID uint32) string {
	return fmt.Sprintf(`<u:%[1]sResponse xmlns:u="%[2]s">`+
		`<Result>%[3]s</Result>`+
		`<NumberReturned>%[4]d</NumberReturned>`+
		`<TotalMatches>%[5]d</TotalMatches>`+
		`<UpdateID>%[6]d</UpdateID>`+
		`</u:%[1]sResponse>`,
		action, ContentDirectoryURN, soap.Escape(didlDoc), returned, total, updateID)
}

// GetSystemUpdateID reports the current catalog change counter.
func (s *Service) GetSystemUpdateID(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetSystemUpdateIDResponse xmlns:u="%s"><Id>%d</Id></u:GetSystemUpdateIDResponse>`,
		ContentDirectoryURN, s.updateID()), nil
}

// GetSearchCapabilities reports the searchable properties.
func (s *Service) GetSearchCapabilities(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetSearchCapabilitiesResponse xmlns:u="%s"><SearchCaps>%s</SearchCaps></u:GetSearchCapabilitiesResponse>`,
		ContentDirectoryURN, searchCapabilities), nil
}

// GetSortCapabilities reports the sortable properties.
func (s *Service) GetSortCapabilities(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetSortCapabilitiesResponse xmlns:u="%s"><SortCaps>%s</SortCaps></u:GetSortCapabilitiesResponse>`,
		ContentDirectoryURN, sortCapabilities), nil
}

// GetProtocolInfo reports the source protocols; this server sinks nothing.
func (s *Service) GetProtocolInfo(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetProtocolInfoResponse xmlns:u="%s"><Source>%s</Source><Sink></Sink></u:GetProtocolInfoResponse>`,
		ConnectionManagerURN, sourceProtocolInfo), nil
}

// GetCurrentConnectionIDs reports the static connection 0.
func (s *Service) GetCurrentConnectionIDs(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetCurrentConnectionIDsResponse xmlns:u="%s"><ConnectionIDs>0</ConnectionIDs></u:GetCurrentConnectionIDsResponse>`,
		ConnectionManagerURN), nil
}

// GetCurrentConnectionInfo reports the static output connection.
func (s *Service) GetCurrentConnectionInfo(context.Context, *soap.Request) (string, error) {
	return fmt.Sprintf(`<u:GetCurrentConnectionInfoResponse xmlns:u="%s">`+
		`<RcsID>-1</RcsID>`+
		`<AVTransportID>-1</AVTransportID>`+
		`<ProtocolInfo></ProtocolInfo>`+
		`<PeerConnectionManager></PeerConnectionManager>`+
		`<PeerConnectionID>-1</PeerConnectionID>`+
		`<Direction>Output</Direction>`+
		`<Status>Unknown</Status>`+
		`</u:GetCurrentConnectionInfoResponse>`,
		ConnectionManagerURN), nil
}

// QueryStateVariable answers the deprecated control query; only
// ConnectionStatus is supported.
func (s *Service) QueryStateVariable(_ context.Context, req *soap.Request) (string, error) {
	if req.Args.Get("varName") != "ConnectionStatus" {
		return "", soap.ErrInvalidVar
	}
	return `<u:QueryStateVariableResponse xmlns:u="urn:schemas-upnp-org:control-1-0">` +
		`<return>Connected</return></u:QueryStateVariableResponse>`, nil
}
