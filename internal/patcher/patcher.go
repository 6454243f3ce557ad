// Package patcher rewrites the version placeholder in the build output.
package patcher

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	errs "github.com/savaki/site-deployer/internal/errors"
	"github.com/savaki/site-deployer/internal/utils"
)

// Report lists the outcome of a patch pass
type Report struct {
	Scanned int      // files with a matching extension
	Updated []string // files rewritten on disk
}

// Patcher replaces Token with Replacement in every file under Dir whose
// extension is listed in Extensions. Files are only written when their
// content changes, which makes a second pass a no-op.
type Patcher struct {
	Dir         string
	Token       string
	Replacement string
	Extensions  []string
	Minify      bool // minify html, css, js, json, svg and xml files that held the token
}

// Patch walks Dir and patches matching files.
func (p *Patcher) Patch(ctx context.Context) (*Report, error) {
	logger := zerolog.Ctx(ctx)

	if p.Token == "" {
		return nil, fmt.Errorf("%w: placeholder token is empty", errs.ErrInvalidSetting)
	}
	if info, err := os.Stat(p.Dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errs.ErrBuildDirNotFound, p.Dir)
	}

	var m *minifier
	if p.Minify {
		m = newMinifier()
	}

	report := &Report{}
	err := filepath.WalkDir(p.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !p.matches(path) {
			return nil
		}
		info, ok, err := utils.RegularFile(path, d)
		if err != nil || !ok {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Scanned++
		changed, err := p.patchFile(path, info.Mode().Perm(), m)
		if err != nil {
			return err
		}
		if changed {
			report.Updated = append(report.Updated, path)
			logger.Info().Str("path", path).Str("token", p.Token).Msg("Updated placeholder")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to patch %s: %w", p.Dir, err)
	}

	logger.Info().
		Int("scanned", report.Scanned).
		Int("updated", len(report.Updated)).
		Msg("Patched build output")

	return report, nil
}

func (p *Patcher) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range p.Extensions {
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// patchFile rewrites path when it holds the token; symlinks are written through.
// Files without the token are left as they are, minify or not.
func (p *Patcher) patchFile(path string, perm fs.FileMode, m *minifier) (bool, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !bytes.Contains(original, []byte(p.Token)) {
		return false, nil
	}

	updated := bytes.ReplaceAll(original, []byte(p.Token), []byte(p.Replacement))
	if m != nil {
		updated, err = m.Bytes(path, updated)
		if err != nil {
			return false, fmt.Errorf("failed to minify %s: %w", path, err)
		}
	}

	if bytes.Equal(original, updated) {
		return false, nil
	}

	if err := os.WriteFile(path, updated, perm); err != nil {
		return false, err
	}
	return true, nil
}
