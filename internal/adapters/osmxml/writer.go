package osmxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Output dialects.
type Format string

const (
	// FormatOSM is a JOSM-style .osm file: modified nodes carry action="modify",
	// created nodes have negative ids.
	FormatOSM Format = "osm"
	// FormatOsmChange is an .osc file grouping nodes under <create> and <modify>.
	FormatOsmChange Format = "osmchange"
)

// ParseFormat resolves an explicit format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "osm", "josm":
		return FormatOSM, nil
	case "osmchange", "osc":
		return FormatOsmChange, nil
	default:
		return "", domain.NewInvalidConfigurationError("format", s, "expected osm or osmchange")
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".osc") {
		return FormatOsmChange
	}
	return FormatOSM
}

type xmlTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type xmlNode struct {
	ID      int64    `xml:"id,attr"`
	Action  string   `xml:"action,attr,omitempty"`
	Version int      `xml:"version,attr,omitempty"`
	Lat     string   `xml:"lat,attr"`
	Lon     string   `xml:"lon,attr"`
	Tags    []xmlTag `xml:"tag"`
}

type osmDoc struct {
	XMLName   xml.Name  `xml:"osm"`
	Version   string    `xml:"version,attr"`
	Generator string    `xml:"generator,attr"`
	Nodes     []xmlNode `xml:"node"`
}

type changeBlock struct {
	Nodes []xmlNode `xml:"node"`
}

type osmChangeDoc struct {
	XMLName   xml.Name     `xml:"osmChange"`
	Version   string       `xml:"version,attr"`
	Generator string       `xml:"generator,attr"`
	Create    *changeBlock `xml:"create,omitempty"`
	Modify    *changeBlock `xml:"modify,omitempty"`
}

// Encode writes cs to w in the given format.
func Encode(w io.Writer, cs *domain.Changeset, format Format, generator string) error {
	var doc any
	switch format {
	case FormatOSM:
		d := osmDoc{Version: "0.6", Generator: generator, Nodes: make([]xmlNode, 0, len(cs.Operations))}
		for _, op := range cs.Operations {
			n := toNode(op)
			if op.Kind == domain.OpModify {
				n.Action = "modify"
			}
			d.Nodes = append(d.Nodes, n)
		}
		doc = d
	case FormatOsmChange:
		d := osmChangeDoc{Version: "0.6", Generator: generator}
		for _, op := range cs.Operations {
			switch op.Kind {
			case domain.OpCreate:
				if d.Create == nil {
					d.Create = &changeBlock{}
				}
				d.Create.Nodes = append(d.Create.Nodes, toNode(op))
			case domain.OpModify:
				if d.Modify == nil {
					d.Modify = &changeBlock{}
				}
				d.Modify.Nodes = append(d.Modify.Nodes, toNode(op))
			}
		}
		doc = d
	default:
		return fmt.Errorf("encode changeset: unknown format %q", format)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	return nil
}

// toNode renders one operation. Tags are sorted by key; a created node
// carries no version.
func toNode(op domain.PlannedOperation) xmlNode {
	n := xmlNode{
		ID:   op.EntityID,
		Lat:  strconv.FormatFloat(op.Position.Lat, 'f', 7, 64),
		Lon:  strconv.FormatFloat(op.Position.Lon, 'f', 7, 64),
		Tags: make([]xmlTag, 0, len(op.Tags)),
	}
	if op.Kind == domain.OpModify {
		n.Version = op.Version
	}
	for _, k := range op.Tags.Keys() {
		n.Tags = append(n.Tags, xmlTag{K: k, V: op.Tags[k]})
	}
	return n
}

// FileWriter implements ports.ChangesetWriter for a local file. It never
// uploads anything.
type FileWriter struct {
	Path      string
	Format    Format
	Generator string
}

var _ ports.ChangesetWriter = (*FileWriter)(nil)

// NewFileWriter infers the format from the extension when format is empty.
func NewFileWriter(path string, format Format, generator string) (*FileWriter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.NewInvalidConfigurationError("output-file", path, "must not be empty")
	}
	if format == "" {
		format = FormatForPath(path)
	}
	return &FileWriter{Path: path, Format: format, Generator: generator}, nil
}

// WriteChangeset writes to a temporary file and renames it into place, so
// a failed run never leaves a truncated changeset behind.
func (w *FileWriter) WriteChangeset(ctx context.Context, cs *domain.Changeset) (err error) {
	defer obs.Time(ctx, "osmxml.WriteChangeset")(&err)

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*")
	if err != nil {
		return fmt.Errorf("write changeset: create temp file in %q: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Encode(tmp, cs, w.Format, w.Generator); err != nil {
		tmp.Close()
		return fmt.Errorf("write changeset %q: %w", w.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write changeset %q: close: %w", w.Path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write changeset %q: chmod: %w", w.Path, err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("write changeset %q: rename: %w", w.Path, err)
	}
	return nil
}
