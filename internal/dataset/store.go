package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"inredd/internal/models"
)

// DefaultWorkers is the parse worker count used when Options.Workers is unset.
const DefaultWorkers = 3

// ImageSizer reports the pixel dimensions of an image file. The store uses it
// to validate bounding boxes against image bounds without decoding pixels
// itself.
type ImageSizer interface {
	Size(path string) (width, height int, err error)
}

// Options configure a split load.
type Options struct {
	Root    string
	Split   string
	Strict  bool
	Workers int
	Sizer   ImageSizer
	// Conditions overrides the condition vocabulary; nil means the default set.
	Conditions *models.ConditionSet
	// OnProgress, when set, is called after each processed file.
	OnProgress func(done, total int, imageID string)
}

// Store is a validated, read-only collection of image records for one split.
// Records are exposed in lexicographic filename order regardless of how many
// workers parsed them.
type Store struct {
	split      string
	conditions *models.ConditionSet
	records    []*models.ImageRecord
	index      map[string]int
	stats      models.SplitStats
	report     models.LoadReport
	total      int
	complete   bool
}

// parseResult is the write-once slot for one annotation file.
type parseResult struct {
	record *models.ImageRecord
	err    error
}

// Load enumerates annotations/<split>/*.json under root, parses and validates
// every file, and returns the assembled store.
//
// In strict mode the first violation aborts the load. In lenient mode
// offending files are skipped and collected into the load report. When ctx
// expires before every file is processed, the partial store is returned
// together with a *PartialLoadError and refuses record access.
func Load(ctx context.Context, opts Options) (*Store, error) {
	if opts.Sizer == nil {
		return nil, fmt.Errorf("dataset: an ImageSizer is required")
	}
	if opts.Conditions == nil {
		opts.Conditions = models.NewConditionSet(nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	files, err := listAnnotationFiles(opts.Root, opts.Split)
	if err != nil {
		return nil, err
	}

	metadata, err := readMetadata(opts.Root)
	if err != nil {
		return nil, err
	}

	store := &Store{
		split:      opts.Split,
		conditions: opts.Conditions,
		index:      make(map[string]int),
		report:     models.LoadReport{Split: opts.Split},
		total:      len(files),
	}

	ldr := &loader{opts: opts, metadata: metadata}

	// Each file gets a known slot before dispatch so parallel completion
	// order can never leak into the exposed record order.
	results := make([]parseResult, len(files))
	tasks := make(chan int)
	inner, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		done      atomic.Int64
		abortOnce sync.Once
		abortErr  error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				rec, err := ldr.parseFile(files[idx])
				results[idx] = parseResult{record: rec, err: err}

				if err != nil && opts.Strict {
					abortOnce.Do(func() {
						abortErr = err
						cancel()
					})
				}

				n := int(done.Add(1))
				if opts.OnProgress != nil {
					opts.OnProgress(n, len(files), imageID(files[idx]))
				}
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range files {
		select {
		case tasks <- i:
			dispatched++
		case <-inner.Done():
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()

	if opts.Strict && abortErr != nil {
		return nil, abortErr
	}
	if err := ctx.Err(); err != nil {
		store.report.Complete = false
		store.report.Loaded = dispatched
		return store, &PartialLoadError{Loaded: dispatched, Total: len(files), Cause: err}
	}

	// Assemble in slot order. Lenient mode turns per-file errors into
	// warnings; strict mode surfaces the first one in filename order.
	for i, res := range results {
		if res.err != nil {
			if opts.Strict {
				return nil, res.err
			}
			store.report.Skipped++
			store.report.Warnings = append(store.report.Warnings, models.LoadWarning{
				File:   filepath.Base(files[i]),
				Reason: res.err.Error(),
			})
			continue
		}
		store.index[res.record.ImageID] = len(store.records)
		store.records = append(store.records, res.record)
	}

	store.complete = true
	store.stats = models.ComputeStats(store.records)
	store.report.Loaded = len(store.records)
	store.report.Complete = true
	return store, nil
}

// Split returns the split name this store was loaded from.
func (s *Store) Split() string {
	return s.split
}

// Conditions returns the condition vocabulary the store was validated against.
func (s *Store) Conditions() *models.ConditionSet {
	return s.conditions
}

// Len returns the number of loaded image records.
func (s *Store) Len() int {
	return len(s.records)
}

// Complete reports whether the load processed every annotation file.
func (s *Store) Complete() bool {
	return s.complete
}

// Get returns the record for imageID. It fails with *NotFoundError on a
// lookup miss and with *PartialLoadError on an incomplete store.
func (s *Store) Get(imageID string) (*models.ImageRecord, error) {
	if !s.complete {
		return nil, &PartialLoadError{Loaded: s.report.Loaded, Total: s.total, Cause: fmt.Errorf("store is incomplete")}
	}
	idx, ok := s.index[imageID]
	if !ok {
		return nil, &NotFoundError{ImageID: imageID}
	}
	return s.records[idx], nil
}

// All returns a restartable sequence over the loaded records in filename
// order. Re-iterating yields the same sequence. An incomplete store yields
// nothing; callers gate on Complete.
func (s *Store) All() iter.Seq[*models.ImageRecord] {
	return func(yield func(*models.ImageRecord) bool) {
		if !s.complete {
			return
		}
		for _, rec := range s.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Records returns the loaded records in filename order, or *PartialLoadError
// for an incomplete store.
func (s *Store) Records() ([]*models.ImageRecord, error) {
	if !s.complete {
		return nil, &PartialLoadError{Loaded: s.report.Loaded, Total: s.total, Cause: fmt.Errorf("store is incomplete")}
	}
	out := make([]*models.ImageRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Stats returns aggregate counts over the loaded state. No I/O.
func (s *Store) Stats() models.SplitStats {
	return s.stats
}

// Report returns the load summary, including lenient-mode skip reasons.
func (s *Store) Report() models.LoadReport {
	return s.report
}

// listAnnotationFiles enumerates annotations/<split>/*.json sorted by name so
// the exposed record order is reproducible across runs.
func listAnnotationFiles(root, split string) ([]string, error) {
	dir := filepath.Join(root, "annotations", split)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading annotation directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// imageID derives the record identifier from an annotation path stem.
func imageID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// readMetadata loads <root>/metadata.csv into per-image attribute maps keyed
// by the first column. A missing file is not an error; the metadata is
// optional and passed through unvalidated.
func readMetadata(root string) (map[string]map[string]string, error) {
	f, err := os.Open(filepath.Join(root, "metadata.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening metadata.csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata.csv header: %w", err)
	}

	meta := make(map[string]map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading metadata.csv: %w", err)
		}
		attrs := make(map[string]string, len(header)-1)
		for i := 1; i < len(header) && i < len(row); i++ {
			attrs[header[i]] = row[i]
		}
		meta[row[0]] = attrs
	}
	return meta, nil
}

// loader carries the immutable load inputs shared by parse workers.
type loader struct {
	opts     Options
	metadata map[string]map[string]string
}

// rawEntry mirrors one JSON object in an annotation file. Pointer fields
// distinguish missing keys from zero values.
type rawEntry struct {
	ToothID     *int            `json:"tooth_id"`
	BBox        []float64       `json:"bbox"`
	Conditions  map[string]bool `json:"conditions"`
	Radiologist *string         `json:"radiologist_id"`
	ImageStatus *string         `json:"image_status"`
}

// statusOnly reports whether the entry carries nothing but an image status.
// Edentulous images are annotated as a single such entry.
func (e *rawEntry) statusOnly() bool {
	return e.ToothID == nil && e.BBox == nil && e.Conditions == nil && e.Radiologist == nil
}

// parseFile reads one annotation file into a validated image record.
func (l *loader) parseFile(path string) (*models.ImageRecord, error) {
	name := filepath.Base(path)
	id := imageID(path)

	imgPath := filepath.Join(l.opts.Root, "images", l.opts.Split, id+".png")
	if _, err := os.Stat(imgPath); err != nil {
		return nil, &MissingImageError{ImageID: id, ImagePath: imgPath}
	}

	width, height, err := l.opts.Sizer.Size(imgPath)
	if err != nil {
		return nil, fmt.Errorf("probing image for %s: %w", id, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading annotation %s: %w", name, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return nil, &SchemaError{File: name, Detail: err.Error()}
	}

	rec := &models.ImageRecord{
		ImageID:  id,
		Width:    width,
		Height:   height,
		FilePath: imgPath,
		Metadata: l.metadata[id],
	}

	seen := make(map[models.AnnotationKey]bool)
	for _, entry := range entries {
		if entry.ImageStatus != nil {
			status := models.ImageStatus(*entry.ImageStatus)
			if !status.Valid() {
				return nil, &SchemaError{File: name, Detail: fmt.Sprintf("unknown image_status %q", *entry.ImageStatus)}
			}
			if rec.Status != "" && rec.Status != status {
				return nil, &SchemaError{File: name, Detail: fmt.Sprintf("conflicting image_status %q and %q", rec.Status, status)}
			}
			rec.Status = status
		}

		if entry.statusOnly() {
			if entry.ImageStatus == nil {
				return nil, &SchemaError{File: name, Detail: "empty annotation entry"}
			}
			continue
		}

		ann, err := l.buildAnnotation(name, &entry)
		if err != nil {
			return nil, err
		}
		if !ann.BBox.Within(width, height) {
			return nil, &SchemaError{File: name, Detail: fmt.Sprintf(
				"bbox (%g,%g,%g,%g) of tooth %d exceeds image bounds %dx%d",
				ann.BBox.X, ann.BBox.Y, ann.BBox.W, ann.BBox.H, ann.ToothID, width, height)}
		}
		if seen[ann.Key()] {
			return nil, &SchemaError{File: name, Detail: fmt.Sprintf(
				"duplicate annotation for tooth %d by %s", ann.ToothID, ann.Radiologist)}
		}
		seen[ann.Key()] = true
		rec.Teeth = append(rec.Teeth, *ann)
	}

	if rec.Status == "" {
		return nil, &SchemaError{File: name, Detail: "image_status is missing"}
	}
	if rec.Status == models.StatusEdentulous && len(rec.Teeth) > 0 {
		return nil, &SchemaError{File: name, Detail: fmt.Sprintf(
			"edentulous image carries %d tooth annotations", len(rec.Teeth))}
	}

	return rec, nil
}

// buildAnnotation validates one tooth entry and materializes its condition map.
func (l *loader) buildAnnotation(file string, entry *rawEntry) (*models.AnnotationRecord, error) {
	if entry.ToothID == nil {
		return nil, &SchemaError{File: file, Detail: "tooth_id is missing"}
	}
	if !models.ValidToothID(*entry.ToothID) {
		return nil, &SchemaError{File: file, Detail: fmt.Sprintf("tooth_id %d is not a valid FDI number", *entry.ToothID)}
	}
	if len(entry.BBox) != 4 {
		return nil, &SchemaError{File: file, Detail: fmt.Sprintf("bbox must have 4 elements, got %d", len(entry.BBox))}
	}
	if entry.Radiologist == nil {
		return nil, &SchemaError{File: file, Detail: "radiologist_id is missing"}
	}

	ann := &models.AnnotationRecord{
		ToothID:     *entry.ToothID,
		BBox:        models.BBox{X: entry.BBox[0], Y: entry.BBox[1], W: entry.BBox[2], H: entry.BBox[3]},
		Radiologist: models.Radiologist(*entry.Radiologist),
	}
	if err := ann.BBox.Validate(); err != nil {
		return nil, &SchemaError{File: file, Detail: err.Error()}
	}
	if !ann.Radiologist.Valid() {
		return nil, &SchemaError{File: file, Detail: fmt.Sprintf("unknown radiologist_id %q", *entry.Radiologist)}
	}

	// Sparse encoding is legal: missing vocabulary names default to false,
	// names outside the vocabulary are rejected.
	ann.Conditions = make(map[string]bool, len(l.opts.Conditions.Names()))
	for _, cond := range l.opts.Conditions.Names() {
		ann.Conditions[cond] = false
	}
	for cond, v := range entry.Conditions {
		if !l.opts.Conditions.Contains(cond) {
			return nil, &SchemaError{File: file, Detail: fmt.Sprintf("unknown condition %q", cond)}
		}
		ann.Conditions[cond] = v
	}

	return ann, nil
}

// decodeEntries accepts either a single annotation object or an array of
// them, the two shapes present in the corpus.
func decodeEntries(data []byte) ([]rawEntry, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []rawEntry
		if err := dec.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var entry rawEntry
	if err := dec.Decode(&entry); err != nil {
		return nil, err
	}
	return []rawEntry{entry}, nil
}
