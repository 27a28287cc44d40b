package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a scene descriptor
type Format int

const (
	YAML Format = iota
	TOML
)

func (f Format) String() string {
	if f == TOML {
		return "toml"
	}
	return "yaml"
}

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return YAML, fmt.Errorf("unsupported descriptor extension %q", filepath.Ext(path))
}

// Blocks holds repeatable descriptor blocks. In YAML a block key may hold a
// single mapping or a sequence of them, so that block counts can be validated.
// TOML uses arrays of tables.
type Blocks[T any] []T

// blockKeys are the keys whose values are Blocks
var blockKeys = map[string]bool{
	"scene":      true,
	"offscreen":  true,
	"background": true,
	"layer":      true,
	"adaptor":    true,
}

// promoteBlocks wraps single mappings under block keys into one-element
// sequences.
func promoteBlocks(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			promoteBlocks(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if blockKeys[key.Value] && val.Kind == yaml.MappingNode {
				n.Content[i+1] = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{val}}
			}
			promoteBlocks(n.Content[i+1])
		}
	}
}

// Descriptor is a raw scene descriptor, legacy spellings included.
// Normalize turns it into a Scene.
type Descriptor struct {
	Scene     Blocks[SceneBlock]     `yaml:"scene" toml:"scene"`
	Offscreen Blocks[OffscreenBlock] `yaml:"offscreen" toml:"offscreen"`
}

// OffscreenBlock designates the output image of an offscreen surface
type OffscreenBlock struct {
	Key string `yaml:"key" toml:"key"`
}

type SceneBlock struct {
	Width      int  `yaml:"width" toml:"width"`
	Height     int  `yaml:"height" toml:"height"`
	Flip       bool `yaml:"flip" toml:"flip"`
	Fullscreen bool `yaml:"fullscreen" toml:"fullscreen"`

	RenderMode string `yaml:"render_mode" toml:"render_mode"`
	// Deprecated: use render_mode
	LegacyRenderMode string `yaml:"renderMode" toml:"renderMode"`

	Background Blocks[BackgroundBlock] `yaml:"background" toml:"background"`
	Layers     Blocks[LayerBlock]      `yaml:"layer" toml:"layer"`
	// Deprecated: declare adaptors inside their layer
	Adaptors Blocks[AdaptorBlock] `yaml:"adaptor" toml:"adaptor"`
}

type BackgroundBlock struct {
	Material    string   `yaml:"material" toml:"material"`
	Color       string   `yaml:"color" toml:"color"`
	TopColor    string   `yaml:"top_color" toml:"top_color"`
	BottomColor string   `yaml:"bottom_color" toml:"bottom_color"`
	TopScale    *float64 `yaml:"top_scale" toml:"top_scale"`
	BottomScale *float64 `yaml:"bottom_scale" toml:"bottom_scale"`
}

type LayerBlock struct {
	ID string `yaml:"id" toml:"id"`
	// Deprecated: layers are ordered by declaration
	Order *int `yaml:"order" toml:"order"`

	Compositors  string `yaml:"compositors" toml:"compositors"`
	Transparency string `yaml:"transparency" toml:"transparency"`
	NumPeels     *int   `yaml:"numPeels" toml:"numPeels"`
	// StereoMode and DefaultLight accept strings or the boolean false
	StereoMode   any    `yaml:"stereoMode" toml:"stereoMode"`
	DefaultLight any    `yaml:"defaultLight" toml:"defaultLight"`
	Overlays     string `yaml:"overlays" toml:"overlays"`

	Viewport *ViewportBlock       `yaml:"viewport" toml:"viewport"`
	Adaptors Blocks[AdaptorBlock] `yaml:"adaptor" toml:"adaptor"`
}

type ViewportBlock struct {
	HOffset float64 `yaml:"hOffset" toml:"hOffset"`
	VOffset float64 `yaml:"vOffset" toml:"vOffset"`
	Width   float64 `yaml:"width" toml:"width"`
	Height  float64 `yaml:"height" toml:"height"`
	HAlign  string  `yaml:"hAlign" toml:"hAlign"`
	VAlign  string  `yaml:"vAlign" toml:"vAlign"`
}

// AdaptorBlock maps an adaptor to a layer. Layer is only read at scene level,
// nested blocks belong to their enclosing layer.
type AdaptorBlock struct {
	UID   string `yaml:"uid" toml:"uid"`
	Layer string `yaml:"layer" toml:"layer"`
}

// Parse decodes a descriptor. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Descriptor, error) {
	var desc Descriptor

	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML descriptor: %w", err)
		}
	default:
		var root yaml.Node
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				return &desc, nil
			}
			return nil, fmt.Errorf("failed to parse YAML descriptor: %w", err)
		}
		promoteBlocks(&root)

		// KnownFields only applies when decoding from a stream
		promoted, err := yaml.Marshal(&root)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML descriptor: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(promoted))
		dec.KnownFields(true)
		if err := dec.Decode(&desc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML descriptor: %w", err)
		}
	}

	return &desc, nil
}

// Load reads and parses a descriptor file, the format follows the extension.
// A leading ~ is expanded to the home directory.
func Load(path string) (*Descriptor, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", path, err)
	}

	format, err := FormatFromPath(expanded)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	return Parse(data, format)
}
