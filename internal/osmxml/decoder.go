package osmxml

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

// Decoder reads OSM XML documents into raw records
type Decoder struct {
	stats Stats
}

// NewDecoder creates a new OSM XML decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Stats returns decoding statistics of the last document
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Decode reads a whole document from r
func Decode(ctx context.Context, r io.Reader) (*Document, error) {
	return NewDecoder().Decode(ctx, r)
}

// DecodeFile reads a document from a file.
// Supports both plain XML and gzip-compressed files.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open map file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return d.Decode(ctx, reader)
}

// Decode reads a whole document from r. Records are returned in document
// order; elements with visible="false" are dropped.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*Document, error) {
	d.stats = Stats{}
	decoder := xml.NewDecoder(r)
	doc := &Document{}
	rootSeen, rootClosed := false, false

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedInputError{Err: err}
		}

		if _, ok := token.(xml.EndElement); ok && rootSeen {
			// children are consumed whole, so this closes the root
			rootClosed = true
			continue
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		if rootClosed {
			return nil, &MalformedInputError{Err: fmt.Errorf("unexpected element %q after the root element", se.Name.Local)}
		}
		if !rootSeen {
			if se.Name.Local != "osm" {
				return nil, &MalformedInputError{Err: fmt.Errorf("unexpected root element %q", se.Name.Local)}
			}
			rootSeen = true
			continue
		}

		switch se.Name.Local {
		case "bounds":
			bounds, err := parseBounds(se)
			if err != nil {
				return nil, err
			}
			doc.Bounds = bounds
			err = skip(decoder)
		case "node":
			err = d.parseNode(decoder, se, doc)
		case "way":
			err = d.parseWay(decoder, se, doc)
		case "relation":
			err = d.parseRelation(decoder, se, doc)
		default:
			err = skip(decoder)
		}
		if err != nil {
			return nil, err
		}
	}

	if !rootSeen {
		return nil, &MalformedInputError{Err: errors.New("no root element")}
	}

	doc.Stats = d.stats
	return doc, nil
}

// parseBounds parses the optional bounds element
func parseBounds(start xml.StartElement) (*osm.Bounds, error) {
	a := attrs{element: "bounds", list: start.Attr}
	var coords [4]float64
	for i, name := range []string{"minlon", "minlat", "maxlon", "maxlat"} {
		v, err := a.float(name)
		if err != nil {
			return nil, err
		}
		coords[i] = v
	}
	return &osm.Bounds{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
	}, nil
}

// parseNode parses a node element
func (d *Decoder) parseNode(decoder *xml.Decoder, start xml.StartElement, doc *Document) error {
	a := attrs{element: "node", list: start.Attr}
	if a.hidden() {
		d.stats.Hidden++
		return skip(decoder)
	}

	id, err := a.parseID()
	if err != nil {
		return err
	}
	node := RawNode{ID: id}
	if node.Lon, err = a.float("lon"); err != nil {
		return err
	}
	if node.Lat, err = a.float("lat"); err != nil {
		return err
	}

	// Parse child elements (tags)
	err = children(decoder, func(child xml.StartElement) error {
		if child.Name.Local != "tag" {
			return nil
		}
		tag, err := parseTag(child, "node", id)
		if err != nil {
			return err
		}
		node.Tags = append(node.Tags, tag)
		d.stats.Tags++
		return nil
	})
	if err != nil {
		return err
	}

	doc.Nodes = append(doc.Nodes, node)
	d.stats.Nodes++
	return nil
}

// parseWay parses a way element
func (d *Decoder) parseWay(decoder *xml.Decoder, start xml.StartElement, doc *Document) error {
	a := attrs{element: "way", list: start.Attr}
	if a.hidden() {
		d.stats.Hidden++
		return skip(decoder)
	}

	id, err := a.parseID()
	if err != nil {
		return err
	}
	way := RawWay{ID: id, Refs: make([]uint32, 0, 16)}

	// Parse child elements (nd refs and tags)
	err = children(decoder, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "nd":
			ca := attrs{element: "nd", parent: "way", id: fmtID(id), list: child.Attr}
			ref, err := ca.uint32("ref")
			if err != nil {
				return err
			}
			way.Refs = append(way.Refs, ref)
		case "tag":
			tag, err := parseTag(child, "way", id)
			if err != nil {
				return err
			}
			way.Tags = append(way.Tags, tag)
			d.stats.Tags++
		}
		return nil
	})
	if err != nil {
		return err
	}

	doc.Ways = append(doc.Ways, way)
	d.stats.Ways++
	return nil
}

// parseRelation parses a relation element
func (d *Decoder) parseRelation(decoder *xml.Decoder, start xml.StartElement, doc *Document) error {
	a := attrs{element: "relation", list: start.Attr}
	if a.hidden() {
		d.stats.Hidden++
		return skip(decoder)
	}

	id, err := a.parseID()
	if err != nil {
		return err
	}
	rel := RawRelation{ID: id}

	// Parse child elements (members and tags)
	err = children(decoder, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "member":
			ca := attrs{element: "member", parent: "relation", id: fmtID(id), list: child.Attr}
			typ, err := ca.require("type")
			if err != nil {
				return err
			}
			ref, err := ca.uint32("ref")
			if err != nil {
				return err
			}
			role, _ := ca.lookup("role")
			rel.Members = append(rel.Members, Member{Type: osm.Type(typ), Ref: ref, Role: role})
		case "tag":
			tag, err := parseTag(child, "relation", id)
			if err != nil {
				return err
			}
			rel.Tags = append(rel.Tags, tag)
			d.stats.Tags++
		}
		return nil
	})
	if err != nil {
		return err
	}

	doc.Relations = append(doc.Relations, rel)
	d.stats.Relations++
	return nil
}

// parseTag parses a tag child element
func parseTag(start xml.StartElement, parent string, id uint32) (osm.Tag, error) {
	a := attrs{element: "tag", parent: parent, id: fmtID(id), list: start.Attr}
	k, err := a.require("k")
	if err != nil {
		return osm.Tag{}, err
	}
	v, err := a.require("v")
	if err != nil {
		return osm.Tag{}, err
	}
	return osm.Tag{Key: k, Value: v}, nil
}

// children calls fn for every direct child element and consumes the
// enclosing element up to its end tag
func children(decoder *xml.Decoder, fn func(xml.StartElement) error) error {
	for {
		token, err := decoder.Token()
		if err != nil {
			return &MalformedInputError{Err: err}
		}

		switch se := token.(type) {
		case xml.StartElement:
			if err := fn(se); err != nil {
				return err
			}
			if err := skip(decoder); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func skip(decoder *xml.Decoder) error {
	if err := decoder.Skip(); err != nil {
		return &MalformedInputError{Err: err}
	}
	return nil
}

func fmtID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// attrs wraps the attributes of one element for required-value lookups
type attrs struct {
	element string
	parent  string
	id      string
	list    []xml.Attr
}

func (a attrs) lookup(name string) (string, bool) {
	for _, attr := range a.list {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (a attrs) hidden() bool {
	v, ok := a.lookup("visible")
	return ok && v == "false"
}

func (a attrs) require(name string) (string, error) {
	v, ok := a.lookup(name)
	if !ok {
		return "", &MissingAttributeError{Element: a.element, Attribute: name, Parent: a.parent, ID: a.id}
	}
	return v, nil
}

// id parses the id attribute of a top-level element and records it for
// errors raised by later attributes
func (a *attrs) parseID() (uint32, error) {
	id, err := a.uint32("id")
	if err != nil {
		return 0, err
	}
	a.id = fmtID(id)
	return id, nil
}

func (a attrs) uint32(name string) (uint32, error) {
	v, err := a.require(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0, &InvalidAttributeError{Element: a.element, Attribute: name, Value: v, Parent: a.parent, ID: a.id, Err: err}
	}
	return uint32(n), nil
}

func (a attrs) float(name string) (float64, error) {
	v, err := a.require(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &InvalidAttributeError{Element: a.element, Attribute: name, Value: v, Parent: a.parent, ID: a.id, Err: err}
	}
	return f, nil
}
