// Package direct_url implementes the PyPA specification Recording the Direct URL Origin of
// installed distributions (AKA PEP 610).
//
// https://packaging.python.org/en/latest/specifications/direct-url/
package direct_url

import (
	"encoding/json"
	"os"
)

type DirectURL struct {
	URL         string       `json:"url"`
	VCSInfo     *VCSInfo     `json:"vcs_info,omitempty"`     // if URL is a VCS reference
	ArchiveInfo *ArchiveInfo `json:"archive_info,omitempty"` // if URL is a sdist or bdist
	DirInfo     *DirInfo     `json:"dir_info,omitempty"`     // if URL is a local directory
}

type VCSInfo struct {
	VCS               string `json:"vcs"`
	RequestedRevision string `json:"requested_revision,omitempty"`
	CommitID          string `json:"commit_id"`
}

type ArchiveInfo struct {
	Hash string `json:"hash,omitempty"`
}

type DirInfo struct {
	Editable bool `json:"editable,omitempty"`
}

// Marshal renders a DirectURL the way Python's json.dumps would, for
// byte-identical output with pip's own direct_url.json files.
func Marshal(d DirectURL) ([]byte, error) {
	return jsonDumps(d)
}

// sidecarPath is where WriteSidecar/ReadSidecar keep a cached artifact's
// provenance, next to the artifact itself.
func sidecarPath(artifactPath string) string {
	return artifactPath + ".direct-url.json"
}

// WriteSidecar writes d alongside artifactPath, recording where a cached
// distribution came from so a later resolve can report provenance without
// re-deriving it from the link.
func WriteSidecar(artifactPath string, d DirectURL) error {
	bs, err := Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(artifactPath), bs, 0o644)
}

// ReadSidecar reads back a sidecar written by WriteSidecar, if one exists.
func ReadSidecar(artifactPath string) (DirectURL, bool, error) {
	bs, err := os.ReadFile(sidecarPath(artifactPath))
	if err != nil {
		if os.IsNotExist(err) {
			return DirectURL{}, false, nil
		}
		return DirectURL{}, false, err
	}
	var d DirectURL
	if err := json.Unmarshal(bs, &d); err != nil {
		return DirectURL{}, false, err
	}
	return d, true, nil
}
