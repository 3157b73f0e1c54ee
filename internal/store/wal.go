package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vfs"
)

// The WAL records the intent of a single note mutation (upsert or
// delete) so that a crash between "file written" and "index committed"
// (or vice versa) is recoverable: on the next Open, a committed WAL
// entry is replayed (apply to fs, apply to SQL, then truncated) before
// any reader or writer proceeds.

const (
	walMagic      = "VLTW0001"
	walFooterSize = 8 // magic-less footer: length(4) + crc32(4)
)

var (
	errWALCorrupt = errors.New("wal corrupt")
	errWALReplay  = errors.New("wal replay")
)

var walCRC = crc32.MakeTable(crc32.Castagnoli)

type walOpKind string

const (
	walOpUpsert walOpKind = "upsert"
	walOpDelete walOpKind = "delete"
)

// walEntry is the JSON payload written between the magic header and the
// length+crc footer.
type walEntry struct {
	Op       walOpKind           `json:"op"`
	NoteID   string              `json:"note_id"`
	Path     string              `json:"path"`
	Content  string              `json:"content,omitempty"`
	Note     *model.Note         `json:"note,omitempty"`
	Metadata []model.MetadataRow `json:"metadata,omitempty"`
	Edges    []model.LinkEdge    `json:"edges,omitempty"`
	External []model.ExternalLink `json:"external,omitempty"`
}

// writeWAL writes a committed WAL entry: magic, JSON body, length+crc32
// footer, then fsyncs. The entry is "committed" the instant this
// returns; a crash afterward is recovered by replaying it.
func writeWAL(w vfs.File, entry walEntry) error {
	if err := truncateWAL(w); err != nil {
		return err
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal wal entry: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(walMagic)
	buf.Write(body)

	footer := make([]byte, walFooterSize)
	binary.BigEndian.PutUint32(footer[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(footer[4:8], crc32.Checksum(body, walCRC))
	buf.Write(footer)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}

	return w.Sync()
}

// truncateWAL resets the WAL file to empty and rewinds to offset 0.
func truncateWAL(w vfs.File) error {
	f, ok := w.(interface{ Truncate(size int64) error })
	if ok {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("truncate wal: %w", err)
		}
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}

	return w.Sync()
}

// readWAL returns the pending entry, or (nil, nil) if the WAL is empty.
func readWAL(w vfs.File) (*walEntry, error) {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek wal: %w", err)
	}

	data, err := io.ReadAll(w)
	if err != nil {
		return nil, fmt.Errorf("read wal: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	if len(data) < len(walMagic)+walFooterSize || string(data[:len(walMagic)]) != walMagic {
		return nil, fmt.Errorf("%w: bad header", errWALCorrupt)
	}

	footer := data[len(data)-walFooterSize:]
	body := data[len(walMagic) : len(data)-walFooterSize]

	length := binary.BigEndian.Uint32(footer[0:4])
	wantCRC := binary.BigEndian.Uint32(footer[4:8])

	if int(length) != len(body) {
		return nil, fmt.Errorf("%w: length mismatch", errWALCorrupt)
	}

	if crc32.Checksum(body, walCRC) != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch", errWALCorrupt)
	}

	var entry walEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", errWALReplay, err)
	}

	return &entry, nil
}

// recoverLocked replays any pending WAL entry: apply to fs, apply to
// sql, then truncate. Must be called while holding the exclusive WAL
// lock.
func (s *Store) recoverLocked(ctx context.Context) error {
	entry, err := readWAL(s.wal)
	if err != nil {
		if errors.Is(err, errWALCorrupt) {
			// A corrupt WAL cannot be trusted; drop it and rely on the
			// caller rebuilding the index from the filesystem (files
			// are authoritative, the WAL only protects the last
			// in-flight index write).
			return truncateWAL(s.wal)
		}

		return err
	}

	if entry == nil {
		return nil
	}

	if err := s.applyEntryToFS(entry); err != nil {
		return fmt.Errorf("%w: apply fs: %w", errWALReplay, err)
	}

	if err := s.applyEntryToSQL(ctx, entry); err != nil {
		return fmt.Errorf("%w: apply sql: %w", errWALReplay, err)
	}

	return truncateWAL(s.wal)
}

func (s *Store) applyEntryToFS(entry *walEntry) error {
	switch entry.Op {
	case walOpUpsert:
		if err := s.fs.MkdirAll(filepath.Dir(entry.Path), 0o750); err != nil {
			return err
		}

		return s.atomic.WriteWithDefaults(entry.Path, bytesReader(entry.Content))
	case walOpDelete:
		err := s.fs.Remove(entry.Path)
		if err != nil && !isNotExist(err) {
			return err
		}

		return nil
	default:
		return fmt.Errorf("unknown wal op %q", entry.Op)
	}
}

func (s *Store) applyEntryToSQL(ctx context.Context, entry *walEntry) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	switch entry.Op {
	case walOpUpsert:
		if entry.Note == nil {
			return errors.New("wal upsert entry missing note")
		}

		if err := upsertNoteTx(ctx, tx, *entry.Note, entry.Metadata, entry.Edges, entry.External); err != nil {
			return err
		}
	case walOpDelete:
		if err := deleteNoteTx(ctx, tx, entry.NoteID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	committed = true

	return nil
}
