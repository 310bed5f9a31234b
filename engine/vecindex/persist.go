package vecindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/vendexa/vendex/engine/domain"
)

// Artifact pair layout. The vector file is little-endian:
//
//	magic uint32, version uint32, dim uint32, count uint32, data count*dim float32
//
// The metadata file is a JSON array in vector-position order. The two files
// are always written and read together.
const (
	fileMagic   uint32 = 0x56445849 // "VDXI"
	fileVersion uint32 = 1

	IndexFileName = "index.vec"
	MetaFileName  = "meta.json"
)

// Paths returns the co-located artifact pair for an index name under baseDir.
func Paths(baseDir, name string) (indexPath, metaPath string) {
	dir := filepath.Join(baseDir, name)
	return filepath.Join(dir, IndexFileName), filepath.Join(dir, MetaFileName)
}

// Save persists the vector structure and metadata as two sibling artifacts.
// Each file is written to a temp name and renamed, so readers never observe
// a partial artifact.
func (ix *Index) Save(indexPath, metaPath string) error {
	if ix == nil || ix.count == 0 {
		return fmt.Errorf("vecindex: save before build: %w", domain.ErrNotBuilt)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return fmt.Errorf("vecindex: mkdir: %w", err)
	}

	if err := writeAtomic(indexPath, ix.encodeVectors()); err != nil {
		return fmt.Errorf("vecindex: write %s: %w", indexPath, err)
	}

	metaJSON, err := json.Marshal(ix.meta)
	if err != nil {
		return fmt.Errorf("vecindex: marshal metadata: %w", err)
	}
	if err := writeAtomic(metaPath, metaJSON); err != nil {
		return fmt.Errorf("vecindex: write %s: %w", metaPath, err)
	}
	return nil
}

// Load reads the artifact pair into memory. A missing file on either side is
// a not-found condition: the index must be built first.
func Load(indexPath, metaPath string) (*Index, error) {
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vecindex: %s: %w", indexPath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("vecindex: read %s: %w", indexPath, err)
	}
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vecindex: %s: %w", metaPath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("vecindex: read %s: %w", metaPath, err)
	}

	ix, err := decodeVectors(raw)
	if err != nil {
		return nil, fmt.Errorf("vecindex: decode %s: %w", indexPath, err)
	}

	var meta []domain.Metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("vecindex: decode %s: %w", metaPath, err)
	}
	if len(meta) != ix.count {
		return nil, fmt.Errorf("vecindex: %d metadata entries for %d vectors, artifacts out of sync", len(meta), ix.count)
	}
	ix.meta = meta
	return ix, nil
}

func (ix *Index) encodeVectors() []byte {
	buf := make([]byte, 16+4*len(ix.data))
	binary.LittleEndian.PutUint32(buf[0:], fileMagic)
	binary.LittleEndian.PutUint32(buf[4:], fileVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[12:], uint32(ix.count))
	for i, f := range ix.data {
		binary.LittleEndian.PutUint32(buf[16+4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVectors(raw []byte) (*Index, error) {
	if len(raw) < 16 {
		return nil, fmt.Errorf("truncated header")
	}
	if binary.LittleEndian.Uint32(raw[0:]) != fileMagic {
		return nil, fmt.Errorf("bad magic")
	}
	if v := binary.LittleEndian.Uint32(raw[4:]); v != fileVersion {
		return nil, fmt.Errorf("unsupported version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(raw[8:]))
	count := int(binary.LittleEndian.Uint32(raw[12:]))
	want := 16 + 4*dim*count
	if dim <= 0 || count <= 0 || len(raw) != want {
		return nil, fmt.Errorf("size %d does not match dim=%d count=%d", len(raw), dim, count)
	}

	data := make([]float32, dim*count)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[16+4*i:]))
	}
	return &Index{dim: dim, count: count, data: data}, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
