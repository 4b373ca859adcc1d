package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/slidefeed/internal/slides"
)

const deckVersion = "1.0"

// DeckDoc is the on-disk deck layout.
type DeckDoc struct {
	Version string          `yaml:"version" json:"version"`
	Title   string          `yaml:"title,omitempty" json:"title,omitempty"`
	Slides  []slides.Record `yaml:"slides" json:"slides"`
}

// DeckFile loads slides from a YAML or JSON deck file.
type DeckFile struct {
	Path string
}

func (d DeckFile) Load(ctx context.Context) ([]slides.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadDeck(d.Path)
}

// ReadDeck reads a deck file. The file is either a DeckDoc or a bare list of
// records. YAML is a superset of JSON, so .json files go through the same decoder.
func ReadDeck(path string) ([]slides.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDeck(data)
}

func ParseDeck(data []byte) ([]slides.Record, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse deck: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []slides.Record
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("parse deck: %w", err)
		}
		return records, nil
	case yaml.MappingNode:
		var doc DeckDoc
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse deck: %w", err)
		}
		return doc.Slides, nil
	}
	return nil, fmt.Errorf("parse deck: unexpected top-level %s", kindName(root.Kind))
}

// WriteDeck writes slides as a deck file; a .json extension selects JSON.
func WriteDeck(path, title string, s []slides.Slide) error {
	doc := DeckDoc{Version: deckVersion, Title: title, Slides: slides.ToRecords(s)}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "node"
}
