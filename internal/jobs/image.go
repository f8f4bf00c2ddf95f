package jobs

import (
	"fmt"
	"os"
	"strings"
)

// ImageSelection holds the ways a container image reference can be
// supplied, in priority order: an explicit full reference, an explicit tag
// on a repository, or a version file whose content is the tag.
type ImageSelection struct {
	// Image is a complete reference (repo@digest or repo:tag); wins
	// outright when set.
	Image string
	// Tag is combined with Repo when Image is empty.
	Tag string
	// VersionFile is read for the tag when both Image and Tag are empty.
	VersionFile string
	// Repo is the image repository used with Tag or VersionFile.
	Repo string
}

// ResolveImage resolves the image reference once per controller run.
// Failing to resolve is a configuration error: the whole run aborts before
// any submission happens.
func ResolveImage(sel ImageSelection) (string, error) {
	if sel.Image != "" {
		return sel.Image, nil
	}

	if sel.Tag != "" {
		if sel.Repo == "" {
			return "", fmt.Errorf("image config error: --image-tag requires an image repository")
		}
		return sel.Repo + ":" + sel.Tag, nil
	}

	if sel.VersionFile != "" {
		if sel.Repo == "" {
			return "", fmt.Errorf("image config error: version file requires an image repository")
		}
		data, err := os.ReadFile(sel.VersionFile)
		if err != nil {
			return "", fmt.Errorf("image config error: failed to read version file: %w", err)
		}
		version := strings.TrimSpace(string(data))
		if version == "" {
			return "", fmt.Errorf("image config error: version file %s is empty", sel.VersionFile)
		}
		return sel.Repo + ":" + version, nil
	}

	return "", fmt.Errorf("image config error: no image reference, tag, or version file configured")
}
