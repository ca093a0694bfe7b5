package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"impar/api/internal/content"
	"impar/api/internal/extract"
)

var ErrNoFiles = errors.New("no files provided")

type Service struct {
	extractor Extractor
	splitter  Splitter
	store     Store
	logger    *slog.Logger
}

func NewService(e Extractor, sp Splitter, st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractor: e, splitter: sp, store: st, logger: logger}
}

// Ingest extracts, chunks and stores a batch of files. The batch fails as
// a whole: if any file cannot be extracted nothing is stored. With
// skipExisting, files whose source is already stored are left out.
func (s *Service) Ingest(ctx context.Context, files []extract.File, skipExisting bool) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	s.logger.InfoContext(ctx, "file upload received", "files", len(files), "names", names)

	pending := files
	var skipped []string
	if skipExisting {
		pending = pending[:0:0]
		for _, f := range files {
			ok, err := s.store.Exists(ctx, content.FileSource(f.Name))
			if err != nil {
				return nil, err
			}
			if ok {
				skipped = append(skipped, f.Name)
				continue
			}
			pending = append(pending, f)
		}
		if len(skipped) > 0 {
			s.logger.InfoContext(ctx, "skipping files already ingested", "files", skipped)
		}
	}

	var chunks []content.Chunk
	if len(pending) > 0 {
		units, err := s.extractor.ExtractBatch(ctx, pending)
		if err != nil {
			return nil, err
		}
		chunks = s.splitter.SplitUnits(units)
		s.logger.InfoContext(ctx, "file processing completed", "files", len(pending), "chunks_generated", len(chunks))

		if err := s.store.Add(ctx, chunks); err != nil {
			return nil, err
		}
	}

	return &UploadResult{
		Filename:        strings.Join(names, ", "),
		ChunksGenerated: len(chunks),
		Status:          StatusProcessed,
		Skipped:         skipped,
	}, nil
}

func (s *Service) ListSources(ctx context.Context) ([]string, error) {
	return s.store.ListSources(ctx)
}
