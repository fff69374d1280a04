// Package buildfile reads the build manifest packed inside a module or extension
// archive: its root header and the stream of piece definitions it declares.
package buildfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

const (
	ModuleRoot    = "VASSAL.build.GameModule"
	ExtensionRoot = "VASSAL.build.module.ModuleExtension"
	PieceElement  = "VASSAL.build.widget.PieceSlot"

	// SmallPieceHeight is the largest declared height of a small counter.
	SmallPieceHeight = 48
)

var ErrMalformed = errors.New("malformed build manifest")

// Header is the root element of a manifest.
type Header struct {
	Root        string
	Version     string
	ExtensionID string
	Name        string
}

func (h Header) IsModule() bool {
	return h.Root == ModuleRoot
}

func (h Header) IsExtension() bool {
	return h.Root == ExtensionRoot
}

// RawPiece is one piece definition as declared in the manifest, before any
// image heuristics or corrections have been applied.
type RawPiece struct {
	GPID       string
	Name       string
	Small      bool
	Descriptor string
	Version    string
}

type pieceSlot struct {
	GPID   string `xml:"gpid,attr"`
	Name   string `xml:"entryName,attr"`
	Height string `xml:"height,attr"`
	Body   string `xml:",chardata"`
}

// ReadHeader decodes the root element of the manifest.
func ReadHeader(data []byte) (Header, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return Header{}, fmt.Errorf("%w: no root element", ErrMalformed)
			}
			return Header{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			h := Header{Root: se.Name.Local}
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "version":
					h.Version = strings.TrimSpace(a.Value)
				case "extensionId":
					h.ExtensionID = strings.TrimSpace(a.Value)
				case "name":
					h.Name = a.Value
				}
			}
			return h, nil
		}
	}
}

// Validate walks the whole manifest and reports the first markup error.
func Validate(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		if _, err := d.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
}

// Pieces lazily yields every piece definition at any depth whose identifier is
// accepted by interest. A nil interest accepts everything. Iteration stops with
// a non-nil error if the markup turns out to be malformed.
func Pieces(data []byte, version string, interest func(gpid string) bool) iter.Seq2[RawPiece, error] {
	return func(yield func(RawPiece, error) bool) {
		d := xml.NewDecoder(bytes.NewReader(data))
		for {
			tok, err := d.Token()
			if err != nil {
				if err != io.EOF {
					yield(RawPiece{}, fmt.Errorf("%w: %v", ErrMalformed, err))
				}
				return
			}
			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != PieceElement {
				continue
			}
			var slot pieceSlot
			if err := d.DecodeElement(&slot, &se); err != nil {
				yield(RawPiece{}, fmt.Errorf("%w: %v", ErrMalformed, err))
				return
			}
			gpid := strings.TrimSpace(slot.GPID)
			if gpid == "" {
				continue
			}
			if interest != nil && !interest(gpid) {
				continue
			}
			if !yield(RawPiece{
				GPID:       gpid,
				Name:       slot.Name,
				Small:      isSmall(slot.Height),
				Descriptor: strings.TrimSpace(slot.Body),
				Version:    version,
			}, nil) {
				return
			}
		}
	}
}

func isSmall(height string) bool {
	h, err := strconv.Atoi(strings.TrimSpace(height))
	if err != nil {
		return false
	}
	return h <= SmallPieceHeight
}
