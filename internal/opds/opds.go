// Package opds renders catalog directories as OPDS 1.2 navigation feeds
// with OPDS Page Streaming Extension links for page-by-page readers.
package opds

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/huggablesquare/deputy/internal/catalog"
)

// Link relations and media types.
const (
	RelSelf        = "self"
	RelStart       = "start"
	RelUp          = "up"
	RelSubsection  = "subsection"
	RelThumbnail   = "http://opds-spec.org/image/thumbnail"
	RelImage       = "http://opds-spec.org/image"
	RelAcquisition = "http://opds-spec.org/acquisition"
	RelStream      = "http://vaemendis.net/opds-pse/stream"

	NavigationType = "application/atom+xml;profile=opds-catalog;kind=navigation"
	// ContentType is sent with every feed response.
	ContentType = NavigationType + ";charset=utf-8"

	// PageParam is the placeholder readers substitute in stream links.
	PageParam = "{pageNumber}"
)

const (
	nsAtom = "http://www.w3.org/2005/Atom"
	nsOPDS = "http://opds-spec.org/2010/catalog"
	nsDC   = "http://purl.org/dc/terms/"
	nsPSE  = "http://vaemendis.net/opds-pse/ns"
)

// Feed is an Atom feed document.
type Feed struct {
	XMLName   xml.Name `xml:"feed"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsOPDS string   `xml:"xmlns:opds,attr"`
	XmlnsDC   string   `xml:"xmlns:dc,attr"`
	XmlnsPSE  string   `xml:"xmlns:pse,attr"`

	ID      string  `xml:"id"`
	Title   string  `xml:"title"`
	Updated string  `xml:"updated"`
	Author  Author  `xml:"author"`
	Links   []Link  `xml:"link"`
	Entries []Entry `xml:"entry"`
}

// Author identifies the feed producer.
type Author struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

// Link is an Atom link. Count is the PSE page count of a stream link.
type Link struct {
	Rel    string `xml:"rel,attr"`
	Href   string `xml:"href,attr"`
	Type   string `xml:"type,attr,omitempty"`
	Length int64  `xml:"length,attr,omitempty"`
	Count  int    `xml:"pse:count,attr,omitempty"`
}

// Entry is one child of the listed directory.
type Entry struct {
	ID      string   `xml:"id"`
	Title   string   `xml:"title"`
	Updated string   `xml:"updated"`
	Extent  string   `xml:"dc:extent,omitempty"`
	Content *Content `xml:"content,omitempty"`
	Links   []Link   `xml:"link"`
}

// Content is a plain text summary.
type Content struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

// Builder turns catalog directories into feeds. Links are rooted at
// BasePath, which must match where the HTTP routes are mounted.
type Builder struct {
	Title    string
	BasePath string
	Author   Author
}

// NewBuilder returns a Builder. The root feed is titled title.
func NewBuilder(title, basePath string) *Builder {
	return &Builder{
		Title:    title,
		BasePath: strings.TrimSuffix(basePath, "/"),
		Author:   Author{Name: "deputy", URI: "https://github.com/huggablesquare/deputy"},
	}
}

// DirectoryURL links to the feed of directory id.
func (b *Builder) DirectoryURL(id string) string {
	return b.BasePath + "/directory/" + url.PathEscape(id)
}

// FileURL links to the whole file id.
func (b *Builder) FileURL(id string) string {
	return b.BasePath + "/file/" + url.PathEscape(id)
}

// PageURL is the page stream template of file id.
func (b *Builder) PageURL(id string) string {
	return b.FileURL(id) + "/" + PageParam
}

// ThumbnailURL links to the thumbnail of entry id.
func (b *Builder) ThumbnailURL(id string) string {
	return b.BasePath + "/thumbnail/" + url.PathEscape(id)
}

// Directory builds the feed listing dir's children in catalog order.
func (b *Builder) Directory(dir *catalog.Entry) *Feed {
	title := dir.Name
	if dir.ID == catalog.RootID {
		title = b.Title
	}

	f := &Feed{
		Xmlns:     nsAtom,
		XmlnsOPDS: nsOPDS,
		XmlnsDC:   nsDC,
		XmlnsPSE:  nsPSE,
		ID:        dir.ID,
		Title:     title,
		Updated:   timestamp(dir.UpdatedAt),
		Author:    b.Author,
		Links: []Link{
			{Rel: RelSelf, Href: b.DirectoryURL(dir.ID), Type: NavigationType},
			{Rel: RelStart, Href: b.DirectoryURL(catalog.RootID), Type: NavigationType},
		},
		Entries: make([]Entry, 0, len(dir.Children)),
	}
	if dir.ParentID != "" {
		f.Links = append(f.Links, Link{Rel: RelUp, Href: b.DirectoryURL(dir.ParentID), Type: NavigationType})
	}

	for _, c := range dir.Children {
		f.Entries = append(f.Entries, b.entry(c))
	}
	return f
}

func (b *Builder) entry(e *catalog.Entry) Entry {
	out := Entry{
		ID:      e.ID,
		Title:   e.Name,
		Updated: timestamp(e.UpdatedAt),
	}
	if e.ImageType != "" {
		out.Links = append(out.Links,
			Link{Rel: RelThumbnail, Href: b.ThumbnailURL(e.ID), Type: e.ImageType},
			Link{Rel: RelImage, Href: b.ThumbnailURL(e.ID), Type: e.ImageType},
		)
	}

	if e.IsDir() {
		out.Links = append(out.Links, Link{Rel: RelSubsection, Href: b.DirectoryURL(e.ID), Type: NavigationType})
		out.Content = &Content{Type: "text", Text: fmt.Sprintf("%d issues", e.FileCount)}
		return out
	}

	out.Extent = humanize.Bytes(uint64(e.Size))
	out.Links = append(out.Links, Link{
		Rel:    RelAcquisition,
		Href:   b.FileURL(e.ID),
		Type:   e.Format.MediaType(),
		Length: e.Size,
	})
	if e.Broken {
		out.Content = &Content{Type: "text", Text: "unreadable"}
		return out
	}
	out.Links = append(out.Links, Link{
		Rel:   RelStream,
		Href:  b.PageURL(e.ID),
		Type:  e.ImageType,
		Count: e.PageCount,
	})
	out.Content = &Content{Type: "text", Text: fmt.Sprintf("%d pages, %s", e.PageCount, out.Extent)}
	return out
}

// Encode writes f as an indented XML document.
func Encode(w io.Writer, f *Feed) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return enc.Close()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
