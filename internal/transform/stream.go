package transform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/dv360-adoption/internal/errs"
	"google.golang.org/api/iterator"
)

const utf8BOM = "\uFEFF"

// Transformer applies one mapping with one invocation stamp.
type Transformer struct {
	mapping Mapping
	stamp   Stamp
}

// NewTransformer creates a Transformer.
func NewTransformer(mapping Mapping, stamp Stamp) *Transformer {
	return &Transformer{mapping: mapping, stamp: stamp}
}

// Stream returns an iterator over the rows of r. The iterator consumes r as it goes
// and cannot be restarted.
func (t *Transformer) Stream(r io.Reader) *RowIterator {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &RowIterator{reader: cr, mapping: t.mapping, stamp: t.stamp}
}

// RowIterator yields mapped rows lazily. Next returns iterator.Done after the last row.
type RowIterator struct {
	reader  *csv.Reader
	mapping Mapping
	stamp   Stamp

	header  []string
	dropped int
	emitted int
	err     error
}

// Next returns the next mapped row, skipping malformed records.
func (it *RowIterator) Next() (Row, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.header == nil {
		if err := it.readHeader(); err != nil {
			it.err = err
			return nil, err
		}
	}

	for {
		fields, err := it.reader.Read()
		if err == io.EOF {
			it.err = iterator.Done
			return nil, iterator.Done
		}
		if err != nil {
			it.err = classify(err)
			return nil, it.err
		}

		row, err := it.mapping.Apply(it.record(fields), it.stamp)
		if errors.Is(err, ErrMalformedRow) {
			it.dropped++
			continue
		}
		if err != nil {
			it.err = err
			return nil, err
		}
		it.emitted++
		return row, nil
	}
}

// Dropped is the number of malformed records skipped so far.
func (it *RowIterator) Dropped() int { return it.dropped }

// Emitted is the number of rows returned so far.
func (it *RowIterator) Emitted() int { return it.emitted }

func (it *RowIterator) readHeader() error {
	header, err := it.reader.Read()
	if err == io.EOF {
		return fmt.Errorf("transform %s: empty payload, no header row: %w", it.mapping.Name, errs.ErrStructuralStream)
	}
	if err != nil {
		return classify(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	it.header = header
	return nil
}

// record keys fields by header. Short rows leave trailing columns absent.
func (it *RowIterator) record(fields []string) Record {
	rec := make(Record, len(it.header))
	for i, name := range it.header {
		if i < len(fields) {
			rec[name] = fields[i]
		}
	}
	return rec
}

func classify(err error) error {
	if errors.Is(err, errs.ErrTransport) || errors.Is(err, errs.ErrStructuralStream) {
		return err
	}
	return fmt.Errorf("transform: reading delimited text: %v: %w", err, errs.ErrStructuralStream)
}
