package bulk

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"cardvault/internal/cardcache"
	"cardvault/internal/cards"
	"cardvault/internal/logging"
	"cardvault/internal/scryfall"
)

// parseReportEvery controls how often parsing progress reaches the observer.
const parseReportEvery = 1000

// Stage names the pipeline states. FAILED is reachable from any of them.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageFetchingManifest Stage = "fetching_manifest"
	StageDownloading      Stage = "downloading"
	StageParsing          Stage = "parsing"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// Progress is delivered to the observer callback as the pipeline advances.
// Byte counts are meaningful during the download stage, record counts during
// parsing.
type Progress struct {
	Stage            Stage
	BytesReceived    int64
	BytesTotal       int64
	RecordsProcessed int
	RecordsTotal     int
}

// Result summarizes a finished run. Stage is StageDone on success and
// otherwise names the stage that failed, so callers can show where the
// pipeline stopped.
type Result struct {
	Variant string
	Records int
	Stage   Stage
}

// Client is the slice of the remote API the pipeline needs.
type Client interface {
	BulkManifest(ctx context.Context) ([]scryfall.BulkEntry, error)
	DownloadBulk(ctx context.Context, entry scryfall.BulkEntry, dest io.Writer, progress func(received, total int64)) error
}

// Ingestor refreshes the card cache from a bulk dataset. One run moves
// through fetching the manifest, streaming the download to a staging file,
// and parsing every record into the cache with persistence deferred to a
// single flush at the end.
type Ingestor struct {
	client     Client
	cache      *cardcache.Cache
	stagingDir string
	logger     *slog.Logger
}

// New creates an Ingestor writing staging downloads under stagingDir.
func New(client Client, cache *cardcache.Cache, stagingDir string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client:     client,
		cache:      cache,
		stagingDir: stagingDir,
		logger:     logging.NewComponentLogger(logger, "bulk"),
	}
}

// Run executes the pipeline for the requested dataset variant. The progress
// callback, when non-nil, observes every stage transition plus byte and
// record counts. Distinguishable failures: a missing manifest entry, a
// download failure, and a malformed dataset each surface with the stage
// they occurred in; a failed run never flushes partial records to disk.
func (i *Ingestor) Run(ctx context.Context, variant string, progress func(Progress)) (Result, error) {
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	report(Progress{Stage: StageFetchingManifest})
	entries, err := i.client.BulkManifest(ctx)
	if err != nil {
		return i.fail(StageFetchingManifest, report, err)
	}

	var entry scryfall.BulkEntry
	found := false
	for _, candidate := range entries {
		if candidate.Type == variant {
			entry = candidate
			found = true
			break
		}
	}
	if !found {
		err := cards.Wrap(cards.ErrManifestEntryMissing, "bulk", "manifest",
			fmt.Sprintf("variant %q not offered", variant), nil)
		return i.fail(StageFetchingManifest, report, err)
	}

	if err := os.MkdirAll(i.stagingDir, 0o755); err != nil {
		return i.fail(StageDownloading, report, fmt.Errorf("create staging directory: %w", err))
	}
	stagingPath := filepath.Join(i.stagingDir, "bulk-"+variant+"-"+uuid.NewString()+".json")
	defer os.Remove(stagingPath)

	i.logger.Info("downloading bulk dataset",
		logging.String("variant", variant),
		logging.Int64("size", entry.Size),
		logging.String(logging.FieldURL, entry.DownloadURI))

	if err := i.download(ctx, entry, stagingPath, report); err != nil {
		return i.fail(StageDownloading, report, err)
	}

	report(Progress{Stage: StageParsing})
	records, err := i.parse(stagingPath, report)
	if err != nil {
		return i.fail(StageParsing, report, err)
	}

	report(Progress{Stage: StageDone, RecordsProcessed: records, RecordsTotal: records})
	i.logger.Info("bulk ingestion complete",
		logging.String("variant", variant),
		logging.Int("records", records))
	return Result{Variant: variant, Records: records, Stage: StageDone}, nil
}

func (i *Ingestor) fail(at Stage, report func(Progress), err error) (Result, error) {
	report(Progress{Stage: StageFailed})
	i.logger.Error("bulk ingestion failed",
		logging.String(logging.FieldStage, string(at)),
		logging.Error(err))
	return Result{Stage: at}, err
}

func (i *Ingestor) download(ctx context.Context, entry scryfall.BulkEntry, dest string, report func(Progress)) error {
	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	defer file.Close()

	err = i.client.DownloadBulk(ctx, entry, file, func(received, total int64) {
		report(Progress{Stage: StageDownloading, BytesReceived: received, BytesTotal: total})
	})
	if err != nil {
		return err
	}
	return file.Close()
}

// parse streams the staged dataset into the cache. A preliminary counting
// pass establishes the record total so observers always see meaningful
// (processed, total) pairs.
func (i *Ingestor) parse(path string, report func(Progress)) (int, error) {
	total, err := i.countRecords(path)
	if err != nil {
		return 0, err
	}

	reader, err := openDataset(path)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	dec := json.NewDecoder(reader)
	if err := expectArrayStart(dec); err != nil {
		return 0, err
	}

	i.cache.StartBulkLoad()
	processed := 0
	for dec.More() {
		var card cards.Card
		if err := dec.Decode(&card); err != nil {
			i.cache.AbandonBulkLoad()
			return processed, cards.Wrap(cards.ErrMalformedDataset, "bulk", "parse",
				fmt.Sprintf("record %d", processed+1), err)
		}
		if err := i.cache.Upsert(card); err != nil {
			i.cache.AbandonBulkLoad()
			return processed, err
		}
		processed++
		if processed%parseReportEvery == 0 {
			report(Progress{Stage: StageParsing, RecordsProcessed: processed, RecordsTotal: total})
		}
	}

	if err := i.cache.FinishBulkLoad(); err != nil {
		return processed, err
	}
	report(Progress{Stage: StageParsing, RecordsProcessed: processed, RecordsTotal: total})
	return processed, nil
}

func (i *Ingestor) countRecords(path string) (int, error) {
	reader, err := openDataset(path)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	dec := json.NewDecoder(reader)
	if err := expectArrayStart(dec); err != nil {
		return 0, err
	}

	count := 0
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return 0, cards.Wrap(cards.ErrMalformedDataset, "bulk", "count",
				fmt.Sprintf("record %d", count+1), err)
		}
		count++
	}
	return count, nil
}

func expectArrayStart(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return cards.Wrap(cards.ErrMalformedDataset, "bulk", "parse", "read dataset", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return cards.Wrap(cards.ErrMalformedDataset, "bulk", "parse", "dataset is not a sequence", nil)
	}
	return nil
}

// openDataset opens the staged file, transparently decompressing gzip
// payloads detected by their magic bytes.
func openDataset(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	buffered := bufio.NewReaderSize(file, 64*1024)
	magic, err := buffered.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, cards.Wrap(cards.ErrMalformedDataset, "bulk", "open", "read dataset header", err)
	}

	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			file.Close()
			return nil, cards.Wrap(cards.ErrMalformedDataset, "bulk", "open", "open gzip stream", err)
		}
		return &datasetReader{Reader: gz, closers: []io.Closer{gz, file}}, nil
	}

	return &datasetReader{Reader: buffered, closers: []io.Closer{file}}, nil
}

type datasetReader struct {
	io.Reader
	closers []io.Closer
}

func (d *datasetReader) Close() error {
	var first error
	for _, closer := range d.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
