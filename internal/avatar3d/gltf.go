package avatar3d

import (
	"fmt"

	"github.com/qmuntal/gltf"
)

// MorphTargetNames returns the blend-shape names a glTF/GLB head declares, indexed
// the way the renderer addresses its morph targets. Names come from the first mesh's
// extras.targetNames; targets without a name are reported as target_<i>.
func MorphTargetNames(path string) ([]string, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("no meshes in file")
	}

	mesh := doc.Meshes[0]
	if len(mesh.Primitives) == 0 {
		return nil, fmt.Errorf("no primitives in mesh")
	}

	names := make([]string, len(mesh.Primitives[0].Targets))
	for i := range names {
		names[i] = fmt.Sprintf("target_%d", i)
	}

	if extras, ok := mesh.Extras.(map[string]interface{}); ok {
		if targetNames, ok := extras["targetNames"].([]interface{}); ok {
			for i, name := range targetNames {
				if i >= len(names) {
					break
				}
				if strName, ok := name.(string); ok && strName != "" {
					names[i] = strName
				}
			}
		}
	}

	return names, nil
}
