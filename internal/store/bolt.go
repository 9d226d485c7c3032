package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"zigbee-go-host/internal/codec"
)

var bucketNodes = []byte("nodes")

// Records are CBOR with integer keys, encoded deterministically.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: cbor encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("store: cbor decoder mode: %v", err))
	}
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNodes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveNode(node *Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putNode(tx.Bucket(bucketNodes), node)
	})
}

func putNode(b *bolt.Bucket, node *Node) error {
	if b == nil {
		return fmt.Errorf("bucket %q not found", bucketNodes)
	}
	data, err := encMode.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", node.IEEEAddress, err)
	}
	return b.Put(node.IEEEAddress[:], data)
}

func getNode(b *bolt.Bucket, ieee codec.IEEEAddress) (*Node, error) {
	if b == nil {
		return nil, fmt.Errorf("bucket %q not found", bucketNodes)
	}
	data := b.Get(ieee[:])
	if data == nil {
		return nil, fmt.Errorf("node %s: %w", ieee, ErrNotFound)
	}
	var node Node
	if err := decMode.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode node %s: %w", ieee, err)
	}
	return &node, nil
}

func (s *BoltStore) GetNode(ieee codec.IEEEAddress) (*Node, error) {
	var node *Node
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		node, err = getNode(tx.Bucket(bucketNodes), ieee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *BoltStore) UpdateNode(ieee codec.IEEEAddress, fn func(node *Node) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		node, err := getNode(b, ieee)
		if err != nil {
			return err
		}
		if err := fn(node); err != nil {
			return err
		}
		node.IEEEAddress = ieee
		return putNode(b, node)
	})
}

func (s *BoltStore) DeleteNode(ieee codec.IEEEAddress) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNodes)
		}
		return b.Delete(ieee[:])
	})
}

// ListNodes returns every node ordered by IEEE address.
func (s *BoltStore) ListNodes() ([]*Node, error) {
	var nodes []*Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return nil
		}
		nodes = make([]*Node, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var node Node
			if err := decMode.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("decode node %X: %w", k, err)
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
