// Package parse implements the Parser Registry (C4): format-aware config
// parsing into a flat keypath map, plus the locator and source-line
// resolution helpers the Drift Engine attaches to every semantic delta.
// Grounded on shared/drift_analyzer/drift_v1.py's _parse_config/_flatten/
// _key_locator/_first_line_for_key dispatch.
package parse

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	tomlv2 "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/catherinevee/certguard/internal/models"
)

// configExts lists the extensions Config accepts; anything else returns
// (nil, false) and the caller treats the file as opaque.
var configExts = map[string]bool{
	".yml": true, ".yaml": true, ".json": true, ".properties": true,
	".ini": true, ".cfg": true, ".conf": true, ".toml": true, ".config": true, ".xml": true,
}

// IsConfigFile reports whether path's extension is one the Parser Registry
// understands.
func IsConfigFile(path string) bool {
	return configExts[strings.ToLower(filepath.Ext(path))]
}

// ParseFile reads and parses path into a nested value tree (map/slice/scalar).
// It returns (nil, nil) for unrecognised extensions rather than an error,
// matching _parse_config's permissive "not a config we understand" return.
func ParseFile(path string) (interface{}, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !configExts[ext] {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseBytes(data, ext)
}

// ParseBytes parses data according to the format implied by ext (a
// lowercase extension including the leading dot).
func ParseBytes(data []byte, ext string) (interface{}, error) {
	switch ext {
	case ".yml", ".yaml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return v, nil
	case ".json":
		var v interface{}
		if len(strings.TrimSpace(string(data))) == 0 {
			return map[string]interface{}{}, nil
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return v, nil
	case ".toml":
		return parseTOML(data)
	case ".properties", ".ini", ".cfg", ".conf", ".config":
		return parseProperties(string(data)), nil
	case ".xml":
		return parseXML(data)
	default:
		return nil, nil
	}
}

// parseTOML tries BurntSushi/toml first (the richer decode-into-interface{}
// API); on failure it falls back to the flatter pelletier/go-toml/v2
// decoder the way drift_v1.py falls back from its primary toml library to
// plain properties parsing, except here both fallback stages are real TOML
// parsers before the final properties-style fallback.
func parseTOML(data []byte) (interface{}, error) {
	var m map[string]interface{}
	if _, err := toml.Decode(string(data), &m); err == nil {
		return m, nil
	}
	var v2 interface{}
	if err := tomlv2.Unmarshal(data, &v2); err == nil {
		return v2, nil
	}
	return parseProperties(string(data)), nil
}

// parseProperties parses key=value lines, skipping blanks and #-comments,
// matching _parse_props.
func parseProperties(text string) map[string]interface{} {
	out := map[string]interface{}{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx >= 0 {
			key := strings.TrimSpace(line[:idx])
			val := strings.TrimSpace(line[idx+1:])
			out[key] = val
		}
	}
	return out
}

// xmlNode mirrors the generic element shape encoding/xml needs to walk an
// arbitrary document without a predeclared schema.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// parseXML flattens an XML document into dotted-path keys, matching
// _parse_xml (namespace-stripped tag names, attribute keys as "tag[@attr]").
func parseXML(data []byte) (map[string]interface{}, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return map[string]interface{}{}, nil
	}
	out := map[string]interface{}{}
	walkXML(root, "", out)
	return out, nil
}

func walkXML(n xmlNode, path string, out map[string]interface{}) {
	tag := n.XMLName.Local
	p := tag
	if path != "" {
		p = path + "." + tag
	}
	if text := strings.TrimSpace(n.Content); text != "" {
		out[p] = text
	}
	for _, a := range n.Attrs {
		out[fmt.Sprintf("%s[@%s]", p, a.Name.Local)] = a.Value
	}
	for _, child := range n.Children {
		walkXML(child, p, out)
	}
}

// Flatten collapses a nested map into dotted keypaths, matching _flatten.
// Non-map leaf values (including slices) are kept as-is; a non-map root
// (e.g. a bare YAML scalar document) is stored under the key "root".
func Flatten(v interface{}, prefix string) map[string]interface{} {
	out := map[string]interface{}{}
	m, ok := asStringMap(v)
	if !ok {
		if v != nil {
			key := prefix
			if key == "" {
				key = "root"
			}
			out[key] = v
		}
		return out
	}
	for k, val := range m {
		nk := k
		if prefix != "" {
			nk = prefix + "." + k
		}
		if nested, ok := asStringMap(val); ok {
			for fk, fv := range Flatten(nested, nk) {
				out[fk] = fv
			}
		} else {
			out[nk] = val
		}
	}
	return out
}

// asStringMap normalises map[string]interface{} and yaml.v3's
// map[interface{}]interface{}/map[string]interface{} decode shapes into a
// single map[string]interface{}.
func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// KeyLocator builds the Locator for a flattened key within filename,
// matching _key_locator's extension-driven type selection.
func KeyLocator(filename, key string) models.Locator {
	ext := strings.ToLower(filepath.Ext(filename))
	var t models.LocatorType
	switch ext {
	case ".yml", ".yaml":
		t = models.LocatorYAMLPath
	case ".json":
		t = models.LocatorJSONPath
	default:
		t = models.LocatorKeypath
	}
	value := filename
	if key != "" {
		value = filename + "." + key
	}
	return models.Locator{Type: t, Value: value}
}

// FirstLineForKey scans file for the last path segment of keyTail and
// returns its 1-based line number, skipping YAML/properties comment lines,
// matching _first_line_for_key. Returns 0 if not found or unreadable.
func FirstLineForKey(path, keyTail string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	segs := strings.Split(keyTail, ".")
	key := segs[len(segs)-1]

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.Contains(line, key) {
			return lineNo
		}
	}
	return 0
}
