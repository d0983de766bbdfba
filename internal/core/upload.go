package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/codec"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Upload decodes a spreadsheet and stores it as a root version.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	const op = "upload"

	if filename == "" {
		return nil, dataset.Validationf(op, "no file provided")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.extensionAllowed(ext) {
		return nil, dataset.Validationf(op, "unsupported file type %q, allowed: %s",
			ext, strings.Join(s.opts.AllowedExtensions, ", "))
	}
	format, err := codec.FormatFromName(filename)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(r, s.opts.MaxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		if n > s.opts.MaxFileSize {
			return nil, dataset.Validationf(op, "file too large: exceeds limit of %d bytes", s.opts.MaxFileSize)
		}
		if n == 0 {
			return nil, dataset.Validationf(op, "empty file: no data received")
		}

		ds, err := codec.Decode(&buf, format)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, ds, ActionUpload, filename)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{
			"rows":    ds.NumRows(),
			"columns": ds.Columns(),
			"bytes":   n,
		}
		s.record(ctx, ActionUpload, nil, []string{id}, ds.NumRows(), meta)
		return &Result{
			FileID:   id,
			Filename: filename,
			Message:  "File uploaded successfully",
			Metadata: meta,
		}, nil
	})
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.opts.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// Export is an encoded dataset ready to be served.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Download encodes a stored version as xlsx (the default) or csv.
func (s *Service) Download(ctx context.Context, fileID, format string) (*Export, error) {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var out *Export
	err = s.limiter.Run(ctx, func() error {
		ds, err := s.load(fileID)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := codec.Encode(&buf, ds, f); err != nil {
			return fmt.Errorf("encode %s: %w", f, err)
		}
		out = &Export{
			Filename:    fileID + f.Extension(),
			ContentType: f.ContentType(),
			Data:        buf.Bytes(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
