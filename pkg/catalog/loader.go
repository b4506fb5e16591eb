// Package catalog reads catalog entity descriptor files.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"catalogmirror/pkg/core"
)

var descriptorExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadPaths reads every descriptor under the given files and directories.
// Directories are walked recursively; files are read in lexical order.
func LoadPaths(paths []string) ([]core.Entity, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(current string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() && descriptorExtensions[strings.ToLower(filepath.Ext(current))] {
				files = append(files, current)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}
	sort.Strings(files)

	var entities []core.Entity
	for _, file := range files {
		loaded, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		entities = append(entities, loaded...)
	}
	return entities, nil
}

// LoadFile reads all entities from one descriptor file.
func LoadFile(path string) ([]core.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data), path)
}

// Decode reads a stream of YAML or JSON documents. Empty documents are
// skipped; every other document must carry a kind and a metadata.name.
// Whole numbers decode as int64, matching what the service model store returns.
func Decode(r io.Reader, source string) ([]core.Entity, error) {
	decoder := utilyaml.NewYAMLOrJSONDecoder(r, 4096)
	var entities []core.Entity
	for index := 0; ; index++ {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return entities, nil
			}
			return nil, fmt.Errorf("%s: document %d: %w", source, index, err)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}

		decoded, _, err := unstructured.UnstructuredJSONScheme.Decode(trimmed, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, index, err)
		}
		object, ok := decoded.(*unstructured.Unstructured)
		if !ok {
			return nil, fmt.Errorf("%s: document %d: lists are not supported", source, index)
		}

		var entity core.Entity
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(object.Object, &entity); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, index, err)
		}
		if metadata, found, _ := unstructured.NestedMap(object.Object, "metadata"); found {
			entity.Metadata.Extra = core.ExtraMetadata(metadata)
		}
		if entity.Metadata.Name == "" {
			return nil, fmt.Errorf("%s: document %d: %s has no metadata.name", source, index, entity.Kind)
		}
		entities = append(entities, entity)
	}
}
