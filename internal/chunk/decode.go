// Package chunk reads identifier columns out of Arrow IPC payloads.
//
// A payload that starts with the Arrow file magic is read as an IPC file;
// anything else is read as an IPC stream. Only string columns are consumed.
package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// IDColumn is the column carrying service identifiers.
const IDColumn = "id"

// ErrDecode is returned when a payload is not a readable Arrow IPC file or stream.
var ErrDecode = errors.New("malformed chunk")

var fileMagic = []byte("ARROW1")

// IDs returns the values of the id column, see Column.
func IDs(data []byte) ([]string, error) {
	return Column(data, IDColumn)
}

// Column returns every non-null value of the named string column across all
// record batches, in encounter order, duplicates included. A batch without the
// column, or with a non-string column of that name, contributes nothing.
// An empty payload yields no values and no error.
func Column(data []byte, name string) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	mem := memory.NewGoAllocator()
	if bytes.HasPrefix(data, fileMagic) {
		return readFile(data, name, mem)
	}
	return readStream(data, name, mem)
}

func readFile(data []byte, name string, mem memory.Allocator) ([]string, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("%w: open file: %v", ErrDecode, err)
	}
	defer r.Close()

	var out []string
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("%w: record batch %d: %v", ErrDecode, i, err)
		}
		out = appendColumn(out, rec, name)
	}
	return out, nil
}

func readStream(data []byte, name string, mem memory.Allocator) ([]string, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", ErrDecode, err)
	}
	defer r.Release()

	var out []string
	for r.Next() {
		out = appendColumn(out, r.Record(), name)
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read stream: %v", ErrDecode, err)
	}
	return out, nil
}

// appendColumn copies values out of the batch; the batch buffers are released
// by the reader.
func appendColumn(out []string, rec arrow.Record, name string) []string {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return out
	}
	switch col := rec.Column(idx[0]).(type) {
	case *array.String:
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			out = append(out, strings.Clone(col.Value(i)))
		}
	case *array.LargeString:
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			out = append(out, strings.Clone(col.Value(i)))
		}
	}
	return out
}
