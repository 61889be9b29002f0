package walstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// writeRequest is a single append request with a response channel, the same
// shape as the teacher's batchRequest.
type writeRequest struct {
	rec   Record
	errCh chan error
}

// Store is an append-only, crash-durable copy of the core's replicated
// log, with the teacher's async batch-commit design: Append enqueues onto
// a channel and blocks for the batch it lands in to be flushed, so many
// concurrent Appends share one fsync.
type Store struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	path    string

	writeCh       chan writeRequest
	bufferSize    int
	flushInterval time.Duration
	closed        chan struct{}
	wg            sync.WaitGroup
	isClosed      bool
}

// Open opens (or creates) the segment file at path and starts the
// background batch writer. bufferSize and flushInterval default to 100 and
// 10ms, matching the teacher's NewWAL defaults.
func Open(path string, bufferSize int, flushInterval time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("walstore: create segment directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walstore: open segment: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Millisecond
	}

	s := &Store{
		file:          file,
		encoder:       json.NewEncoder(file),
		path:          path,
		writeCh:       make(chan writeRequest, bufferSize*2),
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		closed:        make(chan struct{}),
	}

	s.wg.Add(1)
	go s.batchWriter()

	return s, nil
}

// Append persists one record, blocking until the batch it lands in has
// been written and fsynced.
func (s *Store) Append(index, term int64, item []byte) error {
	rec := Record{
		Index:    index,
		Term:     term,
		Item:     append([]byte(nil), item...),
		Checksum: calculateChecksum(index, term, item),
	}

	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	errCh := make(chan error, 1)
	select {
	case s.writeCh <- writeRequest{rec: rec, errCh: errCh}:
		return <-errCh
	case <-s.closed:
		return ErrClosed
	}
}

// batchWriter is the background goroutine that accumulates writeRequests
// and flushes them in batches, the same full/ticker/shutdown three-way
// select as the teacher's batchWriter.
func (s *Store) batchWriter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]writeRequest, 0, s.bufferSize)

	for {
		select {
		case req := <-s.writeCh:
			batch = append(batch, req)
			if len(batch) >= s.bufferSize {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-s.closed:
			if len(batch) > 0 {
				s.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch writes every pending record and issues one fsync for the
// whole batch.
func (s *Store) flushBatch(batch []writeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flushErr error
	for i := range batch {
		if err := s.encoder.Encode(batch[i].rec); err != nil {
			flushErr = fmt.Errorf("walstore: encode record: %w", err)
			break
		}
	}
	if flushErr == nil {
		if err := s.file.Sync(); err != nil {
			flushErr = fmt.Errorf("walstore: sync segment: %w", err)
		}
	}

	for i := range batch {
		batch[i].errCh <- flushErr
		close(batch[i].errCh)
	}
}

// Replay reads every record in the segment from the start, verifying
// checksums, and calls handler with each in order. It stops at the first
// corrupt or checksum-mismatched record rather than skip past it, since a
// silently truncated replay would desynchronize the reconstructed log from
// what was actually committed.
func (s *Store) Replay(handler func(Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("walstore: open segment for replay: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%w: %v", ErrCorruptedWAL, err)
		}

		if !verifyChecksum(rec) {
			return ErrChecksumMismatch
		}

		if err := handler(rec); err != nil {
			return err
		}
	}

	return nil
}

// Compact rotates the segment file, dropping every record with index <
// beforeIndex. It is the hook internal/snapshot calls after it takes a
// snapshot covering up to lastIncludedIndex, so the segment never grows
// past what a fresh node needs after restoring that snapshot.
func (s *Store) Compact(beforeIndex int64) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.isClosed = true
	s.mu.Unlock()

	close(s.closed)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept, err := s.readKeptLocked(beforeIndex)
	if err != nil {
		return err
	}

	if err := s.file.Close(); err != nil {
		return err
	}

	newFile, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	s.file = newFile
	s.encoder = json.NewEncoder(newFile)
	for _, rec := range kept {
		if err := s.encoder.Encode(rec); err != nil {
			return fmt.Errorf("walstore: rewrite compacted segment: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("walstore: sync compacted segment: %w", err)
	}

	s.closed = make(chan struct{})
	s.wg.Add(1)
	go s.batchWriter()
	s.isClosed = false

	return nil
}

// readKeptLocked reads every record with index >= beforeIndex, assuming
// the caller already stopped the batch writer and holds s.mu.
func (s *Store) readKeptLocked(beforeIndex int64) ([]Record, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("walstore: open segment for compaction: %w", err)
	}
	defer file.Close()

	var kept []Record
	decoder := json.NewDecoder(file)
	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrCorruptedWAL, err)
		}
		if rec.Index >= beforeIndex {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

// Close flushes any pending batch and closes the segment file. The Store
// must not be used again afterward.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	close(s.closed)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
