package probe

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// nfoSizeLimit guards against feeding an XML parser something that is
// clearly not a metadata sidecar.
const nfoSizeLimit = 65535

// nfoData carries the fields a metadata sidecar may override.
type nfoData struct {
	Title   string
	Comment string
	Date    string
	Genre   string
	Mime    string
}

// parseNFO reads a <basename>.nfo sidecar and extracts the recognized
// tags. The file is a flat key/value XML document; unknown tags are
// ignored and malformed trailing content is tolerated.
func parseNFO(path string) (*nfoData, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > nfoSizeLimit {
		return nil, fmt.Errorf("sidecar too large (%d bytes)", st.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := map[string]string{}
	dec := xml.NewDecoder(f)
	dec.Strict = false
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			if err != io.EOF && len(values) == 0 {
				return nil, fmt.Errorf("parsing sidecar: %w", err)
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = strings.ToLower(t.Name.Local)
		case xml.CharData:
			if current == "" {
				continue
			}
			if text := strings.TrimSpace(string(t)); text != "" {
				if _, seen := values[current]; !seen {
					values[current] = text
				}
			}
		case xml.EndElement:
			current = ""
		}
	}

	data := &nfoData{
		Comment: values["plot"],
		Date:    values["capturedate"],
		Genre:   values["genre"],
		Mime:    values["mime"],
	}
	if title := values["title"]; title != "" {
		if episode := values["episodetitle"]; episode != "" {
			data.Title = title + " - " + episode
		} else {
			data.Title = title
		}
	}
	return data, nil
}
