// Package upnp generates the UPnP device and service descriptors dlnad
// advertises, and derives the stable device UUID.
package upnp

import (
	"encoding/xml"
	"fmt"
	"net"
	"runtime"

	"github.com/google/uuid"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/version"
)

// Descriptor and control paths.
const (
	RootDescPath          = "/rootDesc.xml"
	ContentDirectoryPath  = "/ContentDirectory.xml"
	ConnectionManagerPath = "/ConnectionManager.xml"
	ControlPath           = "/ctl/ContentDir"
	EventPath             = "/evt/ContentDir"
)

// DeviceType is the advertised root device type.
const DeviceType = "urn:schemas-upnp-org:device:MediaServer:1"

// ServerHeader is the Server/SERVER value sent on HTTP and SSDP responses.
func ServerHeader() string {
	return fmt.Sprintf("%s/1.0 DLNADOC/1.50 UPnP/1.0 %s/%s",
		runtime.GOOS, version.ApplicationName, version.Version)
}

// SpecVersion is the UPnP architecture version element.
type SpecVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

// Service describes one service entry in the device descriptor.
type Service struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// Device is the root device element.
type Device struct {
	DeviceType      string    `xml:"deviceType"`
	FriendlyName    string    `xml:"friendlyName"`
	Manufacturer    string    `xml:"manufacturer"`
	ManufacturerURL string    `xml:"manufacturerURL,omitempty"`
	ModelDesc       string    `xml:"modelDescription,omitempty"`
	ModelName       string    `xml:"modelName"`
	ModelNumber     string    `xml:"modelNumber,omitempty"`
	SerialNumber    string    `xml:"serialNumber,omitempty"`
	UDN             string    `xml:"UDN"`
	DLNADoc         string    `xml:"dlna:X_DLNADOC"`
	ServiceList     []Service `xml:"serviceList>service"`
	PresentationURL string    `xml:"presentationURL,omitempty"`
}

// DeviceDesc is the rootDesc.xml document.
type DeviceDesc struct {
	XMLName     xml.Name    `xml:"root"`
	NS          string      `xml:"xmlns,attr"`
	NSDLNA      string      `xml:"xmlns:dlna,attr"`
	SpecVersion SpecVersion `xml:"specVersion"`
	Device      Device      `xml:"device"`
}

// Services advertised in the descriptor and over SSDP.
func Services() []Service {
	return []Service{
		{
			ServiceType: "urn:schemas-upnp-org:service:ContentDirectory:1",
			ServiceID:   "urn:upnp-org:serviceId:ContentDirectory",
			SCPDURL:     ContentDirectoryPath,
			ControlURL:  ControlPath,
			EventSubURL: EventPath,
		},
		{
			ServiceType: "urn:schemas-upnp-org:service:ConnectionManager:1",
			ServiceID:   "urn:upnp-org:serviceId:ConnectionManager",
			SCPDURL:     ConnectionManagerPath,
			ControlURL:  ControlPath,
			EventSubURL: EventPath,
		},
	}
}

// RootDescriptor renders rootDesc.xml for the given device identity.
func RootDescriptor(dev config.DeviceConfig, udn string) ([]byte, error) {
	desc := DeviceDesc{
		NS:          "urn:schemas-upnp-org:device-1-0",
		NSDLNA:      "urn:schemas-dlna-org:device-1-0",
		SpecVersion: SpecVersion{Major: 1, Minor: 0},
		Device: Device{
			DeviceType:      DeviceType,
			FriendlyName:    dev.FriendlyName,
			Manufacturer:    version.ApplicationName,
			ModelName:       dev.ModelName,
			ModelNumber:     dev.ModelNumber,
			SerialNumber:    dev.SerialNumber,
			UDN:             udn,
			DLNADoc:         "DMS-1.50",
			ServiceList:     Services(),
			PresentationURL: dev.PresentationURL,
		},
	}
	body, err := xml.MarshalIndent(desc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling root descriptor: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// fallbackUUID is used when no interface MAC is available, so a diskless
// test environment still gets a stable identity within a process.
var fallbackUUID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(version.ApplicationName))

// DeviceUDN returns the device UDN ("uuid:" prefixed). An explicitly
// configured UUID wins; otherwise the UUID is derived from the first
// hardware address so it survives restarts.
func DeviceUDN(configured string) string {
	if configured != "" {
		return "uuid:" + configured
	}
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
				continue
			}
			return "uuid:" + uuid.NewSHA1(uuid.NameSpaceOID, iface.HardwareAddr).String()
		}
	}
	return "uuid:" + fallbackUUID.String()
}
