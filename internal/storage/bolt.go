package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/prtimeline/internal/models"
)

// Bucket layout: projects/<project>/{pulls,timelines,commits,patches}.
// Pull-keyed buckets use big-endian pull numbers so cursors iterate in order.
var (
	projectsBucket  = []byte("projects")
	pullsBucket     = []byte("pulls")
	timelinesBucket = []byte("timelines")
	commitsBucket   = []byte("commits")
	patchesBucket   = []byte("patches")
)

// BoltStore keeps raw records in a single-file key-value store
type BoltStore struct {
	db     *bolt.DB
	logger logrus.FieldLogger
}

// NewBoltStore opens or creates a bbolt raw store
func NewBoltStore(path string, logger logrus.FieldLogger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(projectsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SavePull upserts a pull's raw records
func (s *BoltStore) SavePull(ctx context.Context, project string, record *models.RawPullRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var timeline []byte
	if record.Timeline != nil {
		data, err := json.Marshal(record.Timeline)
		if err != nil {
			return fmt.Errorf("encode timeline: %w", err)
		}
		timeline = data
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.Bucket(projectsBucket).CreateBucketIfNotExists([]byte(project))
		if err != nil {
			return err
		}
		key := pullKey(record.Number)

		if record.Pull != nil {
			if err := put(root, pullsBucket, key, record.Pull); err != nil {
				return err
			}
		}
		if timeline != nil {
			if err := put(root, timelinesBucket, key, timeline); err != nil {
				return err
			}
		}
		if record.Patch != "" {
			if err := put(root, patchesBucket, key, []byte(record.Patch)); err != nil {
				return err
			}
		}
		for sha, commit := range record.Commits {
			if err := put(root, commitsBucket, []byte(sha), commit); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadProject loads everything stored for a project
func (s *BoltStore) LoadProject(ctx context.Context, project string) (*models.RawProject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := models.NewRawProject(project)
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(projectsBucket).Bucket([]byte(project))
		if root == nil {
			return fmt.Errorf("project %s: %w", project, ErrNotFound)
		}

		// values are only valid for the life of the transaction, so copy them
		if err := each(root, pullsBucket, func(k, v []byte) error {
			raw.Pulls[pullNumber(k)] = clone(v)
			return nil
		}); err != nil {
			return err
		}
		if err := each(root, timelinesBucket, func(k, v []byte) error {
			timeline, err := decodeTimeline(v)
			if err != nil {
				return fmt.Errorf("project %s pull %d: %w", project, pullNumber(k), err)
			}
			raw.Timelines[pullNumber(k)] = timeline
			return nil
		}); err != nil {
			return err
		}
		if err := each(root, patchesBucket, func(k, v []byte) error {
			raw.Patches[pullNumber(k)] = string(v)
			return nil
		}); err != nil {
			return err
		}
		return each(root, commitsBucket, func(k, v []byte) error {
			raw.Commits[string(k)] = clone(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"project": project,
		"pulls":   len(raw.Pulls),
		"commits": len(raw.Commits),
	}).Debug("Loaded raw project")

	return raw, nil
}

// Projects lists stored projects
func (s *BoltStore) Projects(ctx context.Context) ([]string, error) {
	var projects []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(projectsBucket).ForEachBucket(func(k []byte) error {
			projects = append(projects, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func put(root *bolt.Bucket, name, key, value []byte) error {
	b, err := root.CreateBucketIfNotExists(name)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func each(root *bolt.Bucket, name []byte, fn func(k, v []byte) error) error {
	b := root.Bucket(name)
	if b == nil {
		return nil
	}
	return b.ForEach(fn)
}

func pullKey(number int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(number))
	return key
}

func pullNumber(key []byte) int {
	return int(binary.BigEndian.Uint64(key))
}

func clone(v []byte) json.RawMessage {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
