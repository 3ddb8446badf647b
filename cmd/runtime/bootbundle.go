package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/bundle"
)

// loadBundleFromDisk reads the Instance Manifest at manifestPath and builds
// a bundle.Bundle from every regular file under bundleDir, one asset per
// file (§4.8, §6.4 "a manifest plus the accompanying content-addressed
// bundle"). The manifest and bundle asset directory are deployed side by
// side with the runtime process image; how they get there (image build,
// volume mount, config-map) is outside this runtime's scope.
func loadBundleFromDisk(manifestPath, bundleDir string) ([]byte, bundle.Bundle, error) {
	manifestYAML, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, bundle.Bundle{}, apperr.Wrap(apperr.KindBundleIntegrity, "", "cmd/runtime: read manifest", err)
	}

	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		return nil, bundle.Bundle{}, apperr.Wrap(apperr.KindBundleIntegrity, "", "cmd/runtime: read bundle directory", err)
	}

	var blobs [][]byte
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(bundleDir, entry.Name()))
		if err != nil {
			return nil, bundle.Bundle{}, apperr.Wrap(apperr.KindBundleIntegrity, "", fmt.Sprintf("cmd/runtime: read bundle asset %q", entry.Name()), err)
		}
		blobs = append(blobs, data)
	}

	return manifestYAML, bundle.NewBundle(blobs), nil
}
