package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/filex"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
)

// PartialSuffix marks a snapshot that is still being written.
const PartialSuffix = ".partial"

var errWriterClosed = errors.New("snapshot writer closed")

type opKind int

const (
	opBegin opKind = iota
	opRow
	opEnd
)

type op struct {
	kind  opKind
	table string
	row   source.Row
}

// Writer streams tables into a partial snapshot file. Rows pass through a
// bounded channel to a single encoding goroutine; when the channel is full,
// Append blocks until the encoder catches up.
//
// Writer methods must be called from one producer goroutine.
type Writer struct {
	path    string
	partial string
	f       *os.File
	bw      *bufio.Writer

	ops  chan op
	done chan struct{}
	err  error // owned by the encoder until done is closed

	order  []string
	counts map[string]int64

	stalls  atomic.Int64
	open    bool
	closing sync.Once
}

// NewWriter creates path+".partial", writes the header and starts the
// encoder. buffer is the number of rows that may queue ahead of it.
func NewWriter(path string, h Header, buffer int) (*Writer, error) {
	if buffer < 1 {
		buffer = 1
	}
	if h.Version == 0 {
		h.Version = FormatVersion
	}

	partial := path + PartialSuffix
	if err := filex.RemoveIfExists(partial); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	w := &Writer{
		path:    path,
		partial: partial,
		f:       f,
		bw:      bufio.NewWriterSize(f, 64<<10),
		ops:     make(chan op, buffer),
		done:    make(chan struct{}),
		order:   []string{},
		counts:  make(map[string]int64),
	}

	if err := w.writeHeader(h); err != nil {
		_ = f.Close()
		_ = os.Remove(partial)
		return nil, err
	}

	go w.encode()
	return w, nil
}

func (w *Writer) writeHeader(h Header) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	// reopen the header object to append the tables member
	b = b[:len(b)-1]
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	_, err = w.bw.WriteString(`,"tables":{`)
	return err
}

// BeginTable starts a new table section.
func (w *Writer) BeginTable(ctx context.Context, name string) error {
	if w.open {
		return fmt.Errorf("table %s: previous table not ended", name)
	}
	if err := w.send(ctx, op{kind: opBegin, table: name}); err != nil {
		return err
	}
	w.open = true
	w.order = append(w.order, name)
	w.counts[name] = 0
	return nil
}

// Append queues one row of the current table, blocking while the encoder is
// saturated. It returns ctx.Err() if ctx ends while blocked.
func (w *Writer) Append(ctx context.Context, row source.Row) error {
	if !w.open {
		return errors.New("append outside a table")
	}
	if err := w.send(ctx, op{kind: opRow, row: row}); err != nil {
		return err
	}
	w.counts[w.order[len(w.order)-1]]++
	return nil
}

// EndTable closes the current table section.
func (w *Writer) EndTable(ctx context.Context) error {
	if !w.open {
		return errors.New("no table to end")
	}
	if err := w.send(ctx, op{kind: opEnd}); err != nil {
		return err
	}
	w.open = false
	return nil
}

// Stalls returns how many times Append found the buffer full.
func (w *Writer) Stalls() int64 { return w.stalls.Load() }

// RowCounts returns rows appended per table so far.
func (w *Writer) RowCounts() map[string]int64 {
	out := make(map[string]int64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

func (w *Writer) send(ctx context.Context, o op) error {
	select {
	case <-w.done:
		return w.failure()
	default:
	}

	select {
	case w.ops <- o:
		return nil
	default:
		w.stalls.Add(1)
	}

	select {
	case w.ops <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return w.failure()
	}
}

func (w *Writer) failure() error {
	if w.err != nil {
		return w.err
	}
	return errWriterClosed
}

func (w *Writer) encode() {
	defer close(w.done)

	tables, rows := 0, 0
	for o := range w.ops {
		if w.err != nil {
			continue
		}
		switch o.kind {
		case opBegin:
			w.err = w.writeTableStart(o.table, tables)
			tables++
			rows = 0
		case opRow:
			w.err = w.writeRow(o.row, rows)
			rows++
		case opEnd:
			_, w.err = w.bw.WriteString("\n]")
		}
		if w.err != nil {
			// stop accepting work; producers observe done
			return
		}
	}
}

func (w *Writer) writeTableStart(name string, idx int) error {
	if idx > 0 {
		if err := w.bw.WriteByte(','); err != nil {
			return err
		}
	}
	k, err := json.Marshal(name)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(k); err != nil {
		return err
	}
	_, err = w.bw.WriteString(":[")
	return err
}

func (w *Writer) writeRow(r source.Row, idx int) error {
	b, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	if idx > 0 {
		if err := w.bw.WriteByte(','); err != nil {
			return err
		}
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	_, err = w.bw.Write(b)
	return err
}

// stop closes the op channel once and waits for the encoder to exit.
func (w *Writer) stop() {
	w.closing.Do(func() { close(w.ops) })
	<-w.done
}

// Commit drains the encoder, writes the completion trailer, syncs the file
// and renames it over the final path.
func (w *Writer) Commit() error {
	if w.open {
		w.Abort()
		return errors.New("commit with an open table")
	}
	w.stop()
	if w.err != nil {
		w.Abort()
		return fmt.Errorf("write snapshot: %w", w.err)
	}

	if err := w.writeTrailer(); err != nil {
		w.Abort()
		return fmt.Errorf("write snapshot trailer: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.partial)
		return fmt.Errorf("close snapshot: %w", err)
	}
	w.f = nil

	return filex.Replace(w.partial, w.path)
}

func (w *Writer) writeTrailer() error {
	b, err := json.Marshal(Trailer{Order: w.order, RowCounts: w.counts, Complete: true})
	if err != nil {
		return err
	}
	// splice the trailer members after the tables object
	if _, err := w.bw.WriteString("},"); err != nil {
		return err
	}
	if _, err := w.bw.Write(b[1:]); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Abort stops the encoder and removes the partial file. It is safe to call
// more than once and after a failed Commit.
func (w *Writer) Abort() {
	w.stop()
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	_ = filex.RemoveIfExists(w.partial)
}
