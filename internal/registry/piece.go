package registry

import (
	"fmt"
	"strings"

	"github.com/boardzilla/boardzilla-modreg/internal/archive"
)

type Face int

const (
	Front Face = iota
	Back
)

func (f Face) String() string {
	if f == Back {
		return "back"
	}
	return "front"
}

func ParseFace(s string) (Face, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "":
		return Front, nil
	case "back":
		return Back, nil
	}
	return Front, fmt.Errorf("unknown face %q", s)
}

// Images is the ordered list of image references on one face. A single image
// is reported as a plain value, several as a list.
type Images []string

// Single returns the image when the face has exactly one.
func (im Images) Single() (string, bool) {
	if len(im) != 1 {
		return "", false
	}
	return im[0], true
}

// At picks one image. A face with a single image ignores index.
func (im Images) At(index int) (string, bool) {
	if s, ok := im.Single(); ok {
		return s, true
	}
	if index < 0 || index >= len(im) {
		return "", false
	}
	return im[index], true
}

// Value is the JSON shape of the face: nil, a string, or a list of strings.
func (im Images) Value() any {
	switch len(im) {
	case 0:
		return nil
	case 1:
		return im[0]
	}
	out := make([]any, len(im))
	for i, s := range im {
		out[i] = s
	}
	return out
}

func imagesFromValue(v any) (Images, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return Images{t}, nil
	case []any:
		out := make(Images, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("image list entry %v is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return Images(t), nil
	}
	return nil, fmt.Errorf("unsupported image value %T", v)
}

// Piece is one counter in a loaded registry. It is never modified once the
// registry has been published.
type Piece struct {
	GPID  string
	Name  string
	Small bool
	Front Images
	Back  Images
	// Archive is the archive the piece was read from; images are read from it.
	Archive *archive.Handle
}

func (p *Piece) Images(face Face) Images {
	if face == Back {
		return p.Back
	}
	return p.Front
}

// Summary is the inventory view of a piece.
type Summary struct {
	GPID        string `json:"gpid"`
	Name        string `json:"name"`
	FrontImages int    `json:"frontImages"`
	BackImages  int    `json:"backImages"`
	Small       bool   `json:"isSmall"`
}

func (p *Piece) Summary() Summary {
	return Summary{
		GPID:        p.GPID,
		Name:        p.Name,
		FrontImages: len(p.Front),
		BackImages:  len(p.Back),
		Small:       p.Small,
	}
}

// draft exposes a piece under construction to the override table.
type draft struct {
	p *Piece
}

func (d draft) Field(name string) (any, bool) {
	switch name {
	case "gpid":
		return d.p.GPID, true
	case "name":
		return d.p.Name, true
	case "is_small":
		return d.p.Small, true
	case "front_images":
		return d.p.Front.Value(), true
	case "back_images":
		return d.p.Back.Value(), true
	}
	return nil, false
}

func (d draft) SetField(name string, value any) error {
	switch name {
	case "name":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("name must be a string, got %T", value)
		}
		d.p.Name = s
	case "is_small":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("is_small must be a boolean, got %T", value)
		}
		d.p.Small = b
	case "front_images", "back_images":
		im, err := imagesFromValue(value)
		if err != nil {
			return err
		}
		if name == "front_images" {
			d.p.Front = im
		} else {
			d.p.Back = im
		}
	default:
		return fmt.Errorf("field %s cannot be updated", name)
	}
	return nil
}

func (d draft) ImageCount(name string) (int, bool) {
	switch name {
	case "front_images":
		return len(d.p.Front), true
	case "back_images":
		return len(d.p.Back), true
	}
	return 0, false
}
