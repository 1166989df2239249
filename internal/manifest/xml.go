package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"path/filepath"
	"slices"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// Manifest file patterns.
const (
	PackageXMLPattern  = "**/package.xml"
	ManifestXMLPattern = "**/manifest.xml"
)

// xmlNode is a generic element tree. Only direct children of the root are inspected.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func decodeXML(data []byte) (xmlNode, error) {
	var root xmlNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&root); err != nil {
		return root, err
	}
	return root, nil
}

// NewPackageXML creates the analyzer for catkin package.xml manifests.
// The package name comes from <name>; dependencies are the text of each element in tags.
func NewPackageXML(fs afero.Fs, tags []string, exclude *contract.PathMatcher) (*Analyzer, error) {
	parse := func(_ string, data []byte) ([]schema.PackageRecord, error) {
		root, err := decodeXML(data)
		if err != nil {
			return nil, err
		}
		rec := schema.PackageRecord{Dependencies: []string{}}
		for _, child := range root.Children {
			if child.XMLName.Local == "name" && rec.Name == "" {
				rec.Name, _ = trimmed(child.Text)
				continue
			}
			if !slices.Contains(tags, child.XMLName.Local) {
				continue
			}
			if dep, ok := trimmed(child.Text); ok {
				rec.Dependencies = append(rec.Dependencies, dep)
			}
		}
		if rec.Name == "" {
			return nil, errors.New("missing <name> element")
		}
		return []schema.PackageRecord{rec}, nil
	}
	return newAnalyzer("package.xml", PackageXMLPattern, fs, exclude, parse)
}

// NewManifestXML creates the analyzer for rosbuild manifest.xml manifests.
// The package is named after the manifest's directory; dependencies are the
// package attribute of each element in tags.
func NewManifestXML(fs afero.Fs, tags []string, exclude *contract.PathMatcher) (*Analyzer, error) {
	parse := func(path string, data []byte) ([]schema.PackageRecord, error) {
		root, err := decodeXML(data)
		if err != nil {
			return nil, err
		}
		rec := schema.PackageRecord{
			Name:         filepath.Base(filepath.Dir(path)),
			Dependencies: []string{},
		}
		for _, child := range root.Children {
			if !slices.Contains(tags, child.XMLName.Local) {
				continue
			}
			if dep, ok := child.attr("package"); ok {
				if dep, ok = trimmed(dep); ok {
					rec.Dependencies = append(rec.Dependencies, dep)
				}
			}
		}
		return []schema.PackageRecord{rec}, nil
	}
	return newAnalyzer("manifest.xml", ManifestXMLPattern, fs, exclude, parse)
}
