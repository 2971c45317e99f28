// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package fetchctx retrieves the bytes behind a link.Link, whether that link
// points at a local file or a remote URL, and verifies any integrity hash
// carried in the link's URL fragment.
package fetchctx

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/python"
)

// Context holds the configuration used to fetch link content.
type Context struct {
	HTTPClient *http.Client
	UserAgent  string
}

func (c *Context) fillDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/wickman/pex/pkg/fetchctx"
	}
}

// HTTPError is returned when a remote fetch gets a non-200 status.
type HTTPError struct {
	Status     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s", e.Status)
}

// IntegrityError is returned when the content behind a link does not match
// the hash carried in its URL fragment.
type IntegrityError struct {
	Algorithm string
	Want      string
	Got       string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch: %s: expected=%s actual=%s", e.Algorithm, e.Want, e.Got)
}

// Open returns a readable stream of l's content.  Callers must Close it.
func (c *Context) Open(ctx context.Context, l *link.Link) (io.ReadCloser, error) {
	if l.IsLocal() {
		return os.Open(l.LocalPath())
	}
	c.fillDefaults()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &HTTPError{Status: resp.Status, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// Read returns the full content of l, verifying any integrity hash carried in
// l's URL fragment.
func (c *Context) Read(ctx context.Context, l *link.Link) (_ []byte, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("read %q: %w", l.URL(), err)
		}
	}()

	fp, err := c.Open(ctx, l)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	content, err := io.ReadAll(fp)
	if err != nil {
		return nil, err
	}

	if err := verifyFragment(l.Fragment(), content); err != nil {
		return nil, err
	}

	return content, nil
}

// Fetch downloads l into the directory "into" (or a new temp dir if "into" is
// empty) and returns the local path.  If the target file already exists, it
// is assumed valid and Fetch returns immediately without re-downloading. The
// download is written to a sibling temp file and renamed into place so that
// readers never observe a torn file.
func (c *Context) Fetch(ctx context.Context, l *link.Link, into string) (_ string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("fetch %q: %w", l.URL(), err)
		}
	}()

	if into == "" {
		into, err = os.MkdirTemp("", "pex-fetch-")
		if err != nil {
			return "", err
		}
	}
	target := filepath.Join(into, l.Filename())

	if _, statErr := os.Stat(target); statErr == nil {
		return target, nil
	}

	content, err := c.Read(ctx, l)
	if err != nil {
		return "", err
	}

	targetTmp := fmt.Sprintf("%s.%s", target, uuid.NewString())
	if err := os.WriteFile(targetTmp, content, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(targetTmp, target); err != nil {
		return "", err
	}
	return target, nil
}

func verifyFragment(fragment string, content []byte) error {
	if fragment == "" {
		return nil
	}
	keyvals, err := url.ParseQuery(fragment)
	if err != nil {
		// Not every fragment is a hash fragment; a malformed one is not our
		// problem to report.
		return nil
	}
	for key, vals := range keyvals {
		newHash, ok := python.HashlibAlgorithmsGuaranteed[key]
		if !ok {
			continue
		}
		h := newHash()
		h.Write(content)
		sum := hex.EncodeToString(h.Sum(nil))
		for _, want := range vals {
			if !strings.EqualFold(sum, want) {
				return &IntegrityError{Algorithm: key, Want: want, Got: sum}
			}
		}
	}
	return nil
}
