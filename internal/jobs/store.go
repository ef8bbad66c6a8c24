package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const jobKeyPrefix = "job:"

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusProcessing Status = "processing"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
)

// Job is the bookkeeping record of one batch run.
type Job struct {
	Id         string    `json:"job_id"`
	Status     Status    `json:"status"`
	Mode       string    `json:"mode"`
	VideoPath  string    `json:"video_path"`
	Frames     int       `json:"frames"`
	Tracks     int       `json:"tracks"`
	Events     int       `json:"events"`
	Error      string    `json:"error,omitempty"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func NewJob(videoPath, mode string) *Job {
	now := time.Now()
	return &Job{
		Id:         strings.ReplaceAll(uuid.New().String(), "-", ""),
		Status:     StatusProcessing,
		Mode:       mode,
		VideoPath:  videoPath,
		CreateTime: now,
		UpdateTime: now,
	}
}

func (j *Job) Done() bool {
	return j.Status == StatusFinished || j.Status == StatusFailed
}

// Store keeps job records in a local badger database.
type Store struct {
	db     *badger.DB
	logger *logrus.Entry
}

func Open(dir string, logger *logrus.Entry) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func jobKey(id string) []byte {
	return []byte(jobKeyPrefix + id)
}

func (s *Store) Put(job *Job) error {
	val, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job.Id), val)
	})
}

func (s *Store) Get(id string) (*Job, error) {
	job := &Job{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, job)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Update applies fn to the stored job inside one transaction.
func (s *Store) Update(id string, fn func(job *Job)) (*Job, error) {
	job := &Job{}
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, job)
		}); err != nil {
			return err
		}
		fn(job)
		job.UpdateTime = time.Now()
		newVal, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return txn.Set(jobKey(id), newVal)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns every job, newest first.
func (s *Store) List() ([]*Job, error) {
	var jobs []*Job
	prefix := []byte(jobKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			job := &Job{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, job)
			})
			if err != nil {
				s.logger.WithError(err).Warnf("skip corrupt job record %s", it.Item().Key())
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreateTime.After(jobs[k].CreateTime)
	})
	return jobs, nil
}

// FailInterrupted marks jobs left in processing by a previous run as failed.
func (s *Store) FailInterrupted() (int, error) {
	jobs, err := s.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range jobs {
		if j.Done() {
			continue
		}
		if _, err := s.Update(j.Id, func(job *Job) {
			job.Status = StatusFailed
			job.Error = "interrupted"
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(id))
	})
}
