package drive

import (
	"fmt"
	"io"
	"time"
)

// Download is a prepared, authorized download. Nothing is read until Stream.
type Download struct {
	Name        string
	ContentType string
	Archive     bool

	stream func(w io.Writer) error
}

// Stream writes the content to w. Folders are written as a zip archive. A
// failure part way leaves w holding an unusable archive, never a valid
// truncated one.
func (d *Download) Stream(w io.Writer) error { return d.stream(w) }

// PrepareDownload authorizes actor to read id. Owners, owners of a folder
// above the record, and holders of DOWNLOAD, EDIT or ALL on the record or a
// folder above it may download.
func (s *Service) PrepareDownload(actor, id string) (d *Download, err error) {
	defer s.observe("download", time.Now(), &err)

	rec, err := s.findFile(id)
	if err != nil {
		return nil, err
	}
	if rec.Trashed() {
		return nil, fmt.Errorf("%w: %s is in the trash", ErrNotFound, id)
	}
	p, err := s.paths.Contains(rec.StoragePath)
	if err != nil {
		return nil, err
	}

	acc, err := s.accessFor(actor, rec)
	if err != nil {
		return nil, err
	}
	if !acc.canDownload() {
		return nil, fmt.Errorf("%w: %s may not download %s", ErrForbidden, actor, id)
	}

	if rec.IsDir() {
		return &Download{
			Name:        rec.Name + ".zip",
			ContentType: "application/zip",
			Archive:     true,
			stream: func(w io.Writer) error {
				if err := s.archiver.WriteZip(p, w); err != nil {
					return fmt.Errorf("archiving %s: %w", p, err)
				}
				s.logger.Info("folder downloaded", "id", rec.ID, "by", actor)
				s.emit(actor, rec, ActionDownload)
				return nil
			},
		}, nil
	}

	return &Download{
		Name:        rec.Name,
		ContentType: rec.ContentType,
		stream: func(w io.Writer) error {
			f, err := s.fsys.Open(p)
			if err != nil {
				return fmt.Errorf("%w: opening %s: %w", ErrIOFailure, p, err)
			}
			defer f.Close()
			if _, err := io.Copy(w, f); err != nil {
				return fmt.Errorf("%w: reading %s: %w", ErrIOFailure, p, err)
			}
			s.logger.Info("file downloaded", "id", rec.ID, "by", actor)
			s.emit(actor, rec, ActionDownload)
			return nil
		},
	}, nil
}
