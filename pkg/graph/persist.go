package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pierrec/lz4/v4"
	bolt "go.etcd.io/bbolt"
)

var (
	nodesBucket = []byte("nodes")
	metaBucket  = []byte("meta")
	edgesKey    = []byte("__edges__")
)

// nodeRecord and edgeRecord are the on-disk JSON shapes (spec 4.1/6: keys
// `node:<qn>` and `__edges__`).
type nodeRecord = Node

type edgeRecord = Edge

// Save persists the graph to a bbolt file at path. On save: clear prior
// keys, write all nodes, then the edge list, then flush (spec 4.1).
func (s *Store) Save(path string) error {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open graph db: %w", err)
	}
	defer db.Close()

	nodes, edges := s.snapshotForPersist()

	return db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(nodesBucket); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("clear nodes bucket: %w", err)
		}

		if err := tx.DeleteBucket(metaBucket); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("clear meta bucket: %w", err)
		}

		nb, err := tx.CreateBucket(nodesBucket)
		if err != nil {
			return fmt.Errorf("create nodes bucket: %w", err)
		}

		mb, err := tx.CreateBucket(metaBucket)
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		for _, n := range nodes {
			blob, err := encodeCompressed(nodeRecord(*n))
			if err != nil {
				return fmt.Errorf("encode node %s: %w", n.QualifiedName, err)
			}

			if err := nb.Put([]byte("node:"+n.QualifiedName), blob); err != nil {
				return fmt.Errorf("put node %s: %w", n.QualifiedName, err)
			}
		}

		edgeRecords := make([]edgeRecord, len(edges))
		for i, e := range edges {
			edgeRecords[i] = edgeRecord(*e)
		}

		edgeBlob, err := encodeCompressed(edgeRecords)
		if err != nil {
			return fmt.Errorf("encode edges: %w", err)
		}

		if err := mb.Put(edgesKey, edgeBlob); err != nil {
			return fmt.Errorf("put edges: %w", err)
		}

		return nil
	})
}

// Load restores the graph from a bbolt file at path. Reads all nodes first,
// then edges; edges whose endpoints are missing are dropped (spec 4.1).
func (s *Store) Load(path string) error {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open graph db: %w", err)
	}
	defer db.Close()

	var nodes []*Node

	var edges []*Edge

	err = db.View(func(tx *bolt.Tx) error {
		nb := tx.Bucket(nodesBucket)
		if nb == nil {
			return nil
		}

		cursor := nb.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var n nodeRecord

			if err := decodeCompressed(v, &n); err != nil {
				return fmt.Errorf("decode node %s: %w", k, err)
			}

			nn := Node(n)
			nodes = append(nodes, &nn)
		}

		mb := tx.Bucket(metaBucket)
		if mb == nil {
			return nil
		}

		edgeBlob := mb.Get(edgesKey)
		if edgeBlob == nil {
			return nil
		}

		var edgeRecords []edgeRecord

		if err := decodeCompressed(edgeBlob, &edgeRecords); err != nil {
			return fmt.Errorf("decode edges: %w", err)
		}

		edges = make([]*Edge, len(edgeRecords))
		for i := range edgeRecords {
			e := Edge(edgeRecords[i])
			edges[i] = &e
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.restoreFromPersist(nodes, edges)

	return nil
}

func encodeCompressed(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeCompressed(blob []byte, v any) error {
	r := lz4.NewReader(bytes.NewReader(blob))

	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
