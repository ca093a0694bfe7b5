package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"impar/api/internal/content"
)

// Extractor turns the raw bytes of one file into content units. The source
// is the already normalised identifier every unit must carry.
type Extractor interface {
	Extract(ctx context.Context, source string, data []byte) ([]content.Unit, error)
}

type File struct {
	Name string
	Data []byte
}

// Registry dispatches files to the Extractor for their Format.
type Registry struct {
	extractors map[Format]Extractor
	pool       *ants.Pool
	logger     *slog.Logger
}

type Option func(*Registry) error

// WithExtractor overrides the Extractor used for a Format.
func WithExtractor(f Format, e Extractor) Option {
	return func(r *Registry) error {
		r.extractors[f] = e
		return nil
	}
}

// WithOCR sets the engine behind image extraction.
func WithOCR(engine OCR) Option {
	return func(r *Registry) error {
		r.extractors[FormatImage] = NewImageExtractor(engine)
		return nil
	}
}

// WithConcurrency sets how many files of a batch are extracted at once.
func WithConcurrency(size int) Option {
	return func(r *Registry) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// NewRegistry wires the default extractor for every Format. Image
// extraction fails until an OCR engine is supplied with WithOCR.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		extractors: map[Format]Extractor{
			FormatPDF:      NewPDFExtractor(),
			FormatCSV:      NewCSVExtractor(),
			FormatExcel:    NewExcelExtractor(),
			FormatImage:    NewImageExtractor(nil),
			FormatDocument: NewDocumentExtractor(),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Close()
			return nil, err
		}
	}

	if r.pool == nil {
		size := runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, err
		}
		r.pool = pool
	}

	return r, nil
}

// Close releases the worker pool.
func (r *Registry) Close() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Extract runs the extractor matching filename's extension.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) ([]content.Unit, error) {
	format, ok := DetectFormat(filename)
	if !ok {
		r.logger.ErrorContext(ctx, "unsupported file format", "filename", filename)
		return nil, &UnsupportedFormatError{Filename: filename}
	}

	extractor, ok := r.extractors[format]
	if !ok {
		return nil, &UnsupportedFormatError{Filename: filename}
	}

	units, err := extractor.Extract(ctx, content.FileSource(filename), data)
	if err != nil {
		r.logger.ErrorContext(ctx, "extraction failed", "filename", filename, "format", format.String(), "error", err)
		var ee *ExtractionError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &ExtractionError{Filename: filename, Format: format, Err: err}
	}

	r.logger.DebugContext(ctx, "file extracted", "filename", filename, "format", format.String(), "units", len(units))
	return units, nil
}

// ExtractBatch extracts every file, keeping input order in the output.
// The batch is all or nothing: the first failing file, in input order,
// aborts it and no units are returned.
func (r *Registry) ExtractBatch(ctx context.Context, files []File) ([]content.Unit, error) {
	for _, f := range files {
		if _, ok := DetectFormat(f.Name); !ok {
			r.logger.ErrorContext(ctx, "unsupported file format", "filename", f.Name)
			return nil, &UnsupportedFormatError{Filename: f.Name}
		}
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]content.Unit, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := batchCtx.Err(); err != nil {
				errs[i] = err
				return
			}
			units, err := r.Extract(batchCtx, f.Name, f.Data)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = units
		}
		if err := r.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit %s: %w", f.Name, err)
			cancel()
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Files skipped after another one failed report context.Canceled;
	// the real cause is the first other error in input order.
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var all []content.Unit
	for _, units := range results {
		all = append(all, units...)
	}
	r.logger.InfoContext(ctx, "batch extracted", "files", len(files), "units", len(all))
	return all, nil
}
