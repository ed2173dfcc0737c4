package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

const (
	edgePrefix byte = 'e'
	edgeKeyLen      = 1 + 4 + 8 + 8
)

// BadgerStore persists graph edges in BadgerDB. Keys are
// 'e' | label | src | dst, big endian, so a label's edges are contiguous
// and sorted by source. Storing an edge twice keeps one copy.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) an edge store at path. An empty path
// opens an in-memory store.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func encodeEdgeKey(e Edge) []byte {
	key := make([]byte, edgeKeyLen)
	key[0] = edgePrefix
	binary.BigEndian.PutUint32(key[1:5], e.Label)
	binary.BigEndian.PutUint64(key[5:13], e.Src)
	binary.BigEndian.PutUint64(key[13:21], e.Dst)
	return key
}

func decodeEdgeKey(key []byte) (Edge, error) {
	if len(key) != edgeKeyLen || key[0] != edgePrefix {
		return Edge{}, fmt.Errorf("invalid edge key %x", key)
	}
	return Edge{
		Label: binary.BigEndian.Uint32(key[1:5]),
		Src:   binary.BigEndian.Uint64(key[5:13]),
		Dst:   binary.BigEndian.Uint64(key[13:21]),
	}, nil
}

// PutEdges stores edges, batching writes
func (s *BadgerStore) PutEdges(edges []Edge) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range edges {
		if err := wb.Set(encodeEdgeKey(e), nil); err != nil {
			return fmt.Errorf("failed to write edge %d-%d->%d: %w", e.Src, e.Label, e.Dst, err)
		}
	}
	return wb.Flush()
}

// DeleteEdges removes edges; missing edges are ignored
func (s *BadgerStore) DeleteEdges(edges []Edge) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range edges {
			if err := txn.Delete(encodeEdgeKey(e)); err != nil && err != badger.ErrKeyNotFound {
				return fmt.Errorf("failed to delete edge %d-%d->%d: %w", e.Src, e.Label, e.Dst, err)
			}
		}
		return nil
	})
}

// Edges returns every stored edge ordered by label, source, destination
func (s *BadgerStore) Edges() ([]Edge, error) {
	return s.scan([]byte{edgePrefix})
}

// LabelEdges returns the edges of one label ordered by source, destination
func (s *BadgerStore) LabelEdges(label uint32) ([]Edge, error) {
	prefix := make([]byte, 5)
	prefix[0] = edgePrefix
	binary.BigEndian.PutUint32(prefix[1:], label)
	return s.scan(prefix)
}

// CountEdges counts stored edges without materializing them
func (s *BadgerStore) CountEdges() (uint64, error) {
	var count uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // keys only
		opts.Prefix = []byte{edgePrefix}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) scan(prefix []byte) ([]Edge, error) {
	var edges []Edge
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // everything is in the key
		opts.PrefetchSize = 1000
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			e, err := decodeEdgeKey(it.Item().Key())
			if err != nil {
				return err
			}
			edges = append(edges, e)
		}
		return nil
	})
	return edges, err
}

// LoadCSR builds a MultiLabelCSR from the stored edges and fills its
// statistics
func (s *BadgerStore) LoadCSR(collector *annotations.Collector) (*MultiLabelCSR, error) {
	edges, err := s.Edges()
	if err != nil {
		return nil, err
	}
	g := NewMultiLabelCSRWithCollector(edges, collector)
	g.FillStats()
	return g, nil
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
