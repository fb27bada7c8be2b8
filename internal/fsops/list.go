package fsops

import (
	"os"
	"sort"

	"github.com/petasbytes/toolguard/internal/spill"
)

// ListSpills returns the sorted names of spill files directly under the root.
// A root that does not exist yet has no spill files.
func (r Root) ListSpills() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !spill.IsSpillFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
