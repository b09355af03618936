package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mholt/archives"
	"go.uber.org/zap"
)

var archiveExtensions = []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar.zst", ".7z", ".rar"}

// completeMarker is written once a pack is fully extracted.
const completeMarker = ".soundstage-complete"

// IsArchive reports whether path looks like a sample-pack archive.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// packDir is stable for one version of an archive file, so a pack is extracted once.
func (r *Resolver) packDir(path string, info os.FileInfo) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano())
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
	return filepath.Join(r.cacheDir, "packs", id.String()), nil
}

// extract unpacks the audio files of an archive under the cache dir and returns
// the directory.
func (r *Resolver) extract(ctx context.Context, path string) (string, error) {
	if r.cacheDir == "" {
		return "", fmt.Errorf("%w: %s (no cache dir for archives)", ErrUnsupported, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("cannot stat archive: %w", err)
	}
	dest, err := r.packDir(path, info)
	if err != nil {
		return "", fmt.Errorf("invalid archive path %s: %w", path, err)
	}
	if _, err := os.Stat(filepath.Join(dest, completeMarker)); err == nil {
		r.log.Debug("sample pack already extracted", zap.String("archive", path), zap.String("dir", dest))
		return dest, nil
	}

	format, reader, err := archives.Identify(ctx, path, f)
	if err != nil {
		return "", fmt.Errorf("cannot identify archive format: %w", err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return "", fmt.Errorf("%w: %s does not support extraction", ErrUnsupported, path)
	}

	// zip and 7z read from the file directly
	var src io.Reader = reader
	switch format.(type) {
	case archives.Zip, archives.SevenZip:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("cannot rewind archive: %w", err)
		}
		src = f
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dest, err)
	}
	root := filepath.Clean(dest)
	extracted := 0
	err = extractor.Extract(ctx, src, func(ctx context.Context, fi archives.FileInfo) error {
		if fi.IsDir() || !IsAudio(fi.NameInArchive) {
			return nil
		}
		target := filepath.Join(root, filepath.Clean(fi.NameInArchive))
		if !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("invalid file path: %s", fi.NameInArchive)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		in, err := fi.Open()
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := io.Copy(out, in); err != nil {
			return err
		}
		extracted++
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cannot extract %s: %w", path, err)
	}

	if err := os.WriteFile(filepath.Join(dest, completeMarker), nil, 0644); err != nil {
		return "", fmt.Errorf("cannot finish %s: %w", dest, err)
	}
	r.log.Info("extracted sample pack", zap.String("archive", path), zap.Int("tracks", extracted))
	return dest, nil
}
