package kinds

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/url"
	"strconv"
	"strings"

	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/store"
)

// SchemaImage identifies a raw frame resource whose serialized form is
// a cache-busted download URL rather than the bytes themselves.
const SchemaImage = "image.v1"

// Frame is the kind-opaque byte matrix a source node publishes each
// tick. It is intentionally a minimal wrapper around Go's image.Image
// so plugin nodes can hand the encoder a real decoded frame without
// the engine depending on any particular camera/codec library.
type Frame struct {
	Img image.Image
}

// Image is a resource whose data is a raw frame. On every Serialize,
// if data is present, the frame is JPEG-encoded, uploaded to the
// configured file store under a stable per-resource filename, and the
// record's Data field becomes "{storeUrl}/file/{filename}?v={version}".
// The ?v= suffix is required so caching consumers re-fetch on change.
type Image struct {
	*resource.Base
	fileStore store.Store
	filename  string
}

// NewImageConstructor binds a file store and returns a Constructor
// suitable for Creator.Register(SchemaImage, ...).
func NewImageConstructor(fileStore store.Store) resource.Constructor {
	return func(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
		if err := resource.ValidateConfig(cfg); err != nil {
			return nil, err
		}
		base := resource.NewBase(SchemaImage, cfg, c.Dispatcher)
		img := &Image{
			Base:      base,
			fileStore: fileStore,
			filename:  base.Key() + ".jpg",
		}
		if cfg.Data != nil {
			if _, err := img.SetData(cfg.Data); err != nil {
				return nil, err
			}
		}
		return img, nil
	}
}

// RegisterImageFromSerialized registers the image.v1 rehydration
// function: it downloads the referenced URL's path from the file
// store, decodes the JPEG, and constructs a fresh Image resource
// seeded with the decoded frame, per §4.2's "dereference the URL and
// rehydrate bytes" contract for kinds whose Data is a reference.
func RegisterImageFromSerialized(c *resource.Creator, fileStore store.Store) {
	c.RegisterFromSerialized(SchemaImage, func(creator *resource.Creator, rec resource.Record) (resource.Resource, error) {
		urlStr, _ := rec.Data.(string)
		name := filenameFromURL(urlStr)
		var data any
		if name != "" {
			if raw, err := fileStore.Download(name); err == nil {
				if decoded, decErr := jpeg.Decode(bytes.NewReader(raw)); decErr == nil {
					data = Frame{Img: decoded}
				}
			}
		}
		return creator.Create(SchemaImage, resource.Config{Name: rec.Name, Scopes: rec.Scopes, Data: data})
	})
}

// filenameFromURL extracts the "{name}" segment out of a
// "{storeUrl}/file/{name}?v={version}" download URL.
func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Path, "/file/")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

func (img *Image) Serialize() ([]resource.Record, error) {
	data, ok := img.GetData(nil)
	if !ok || data == nil {
		return []resource.Record{img.Record(nil)}, nil
	}

	frame, ok := data.(Frame)
	if !ok {
		return nil, &resource.SerializeError{Key: img.Key(), Reason: fmt.Sprintf("unexpected data type %T", data)}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, &resource.SerializeError{Key: img.Key(), Reason: fmt.Sprintf("encode error: %v", err)}
	}
	if _, err := img.fileStore.Upload(img.filename, buf.Bytes()); err != nil {
		return nil, &resource.SerializeError{Key: img.Key(), Reason: fmt.Sprintf("upload error: %v", err)}
	}

	version := img.Version()
	cacheBusted := img.fileStore.URL(img.filename) + "?v=" + strconv.FormatInt(version, 10)
	return []resource.Record{img.Record(cacheBusted)}, nil
}

func (img *Image) Dispose() {
	_ = img.fileStore.Delete(img.filename)
	img.DisposeSiblings()
}

// SolidFrame returns a uniform-color frame of the given size, useful
// for nodes/tests that need a cheap placeholder frame without a real
// camera or codec dependency.
func SolidFrame(w, h int, c color.Color) Frame {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, c)
		}
	}
	return Frame{Img: im}
}
