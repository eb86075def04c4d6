package npz

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud/npy"
)

// DefaultMaxEntryBytes caps the uncompressed size of a single member.
const DefaultMaxEntryBytes = 1 << 30

// Entry is one archive member in directory order. Exactly one of Array
// and Err is set.
type Entry struct {
	Name  string
	Array *npy.DecodedArray
	Err   error
}

// Key returns the array name numpy.load would expose (Name without ".npy").
func (e Entry) Key() string {
	return strings.TrimSuffix(e.Name, ".npy")
}

// OK reports whether the member decoded successfully.
func (e Entry) OK() bool { return e.Err == nil && e.Array != nil }

// Decoder extracts .npz archives.
type Decoder struct {
	// MaxEntryBytes limits the uncompressed size of each member. Larger
	// members fail with ErrCorruptArchive on their own Entry.
	MaxEntryBytes int64
}

// Decode extracts buf with the default member size limit.
func Decode(buf []byte) ([]Entry, error) {
	return (&Decoder{MaxEntryBytes: DefaultMaxEntryBytes}).Decode(buf)
}

// IsZip reports whether buf starts with the zip signature.
func IsZip(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 'P' && buf[1] == 'K'
}

// Decode unzips every member of buf and decodes it as an .npy stream.
// Archive-level failures are returned as errors; member-level failures are
// recorded on the member's Entry.
func (d *Decoder) Decode(buf []byte) ([]Entry, error) {
	if !IsZip(buf) {
		return nil, npy.Errorf(npy.ErrNotAZip, "missing PK signature")
	}

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, npy.Errorf(npy.ErrCorruptArchive, "read zip directory").WithCause(err)
	}

	limit := d.MaxEntryBytes
	if limit <= 0 {
		limit = DefaultMaxEntryBytes
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entry := Entry{Name: f.Name}
		data, err := readMember(f, limit)
		if err == nil {
			entry.Array, err = npy.DecodeNPY(data)
		}
		if err != nil {
			entry.Err = npy.InEntry(err, f.Name)
			monitoring.Logf("[npz] skipping member %s: %v", f.Name, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readMember(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, npy.Errorf(npy.ErrCorruptArchive, "member is %d bytes, limit %d", f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, npy.Errorf(npy.ErrCorruptArchive, "open member").WithCause(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, npy.Errorf(npy.ErrCorruptArchive, "read member").WithCause(err)
	}
	if int64(len(data)) > limit {
		return nil, npy.Errorf(npy.ErrCorruptArchive, "member exceeds %d bytes", limit)
	}
	return data, nil
}

// String summarises an entry for logs and CLI output.
func (e Entry) String() string {
	if !e.OK() {
		return fmt.Sprintf("%s: error: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s %v", e.Name, e.Array.Descriptor.DType, e.Array.Descriptor.Shape)
}
