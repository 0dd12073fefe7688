package notify

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.etcd.io/bbolt"
)

var spoolBucket = []byte("notifications")

const (
	DefaultRetryInterval = 30 * time.Second
	DefaultSpoolTTL      = 24 * time.Hour
)

type SpoolConfig struct {
	Path          string
	RetryInterval time.Duration
	TTL           time.Duration
}

// Spool wraps a Dispatcher. Notifications the dispatcher fails to take are
// stored in a bbolt file and retried by Run, oldest first.
type Spool struct {
	db   *bbolt.DB
	next Dispatcher
	conf SpoolConfig
	now  func() time.Time
}

var _ Dispatcher = (*Spool)(nil)

func OpenSpool(next Dispatcher, conf SpoolConfig) (*Spool, error) {
	if conf.RetryInterval <= 0 {
		conf.RetryInterval = DefaultRetryInterval
	}
	if conf.TTL <= 0 {
		conf.TTL = DefaultSpoolTTL
	}
	db, err := bbolt.Open(conf.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open spool %s: %w", conf.Path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(spoolBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create spool bucket: %w", err)
	}
	s := &Spool{db: db, next: next, conf: conf, now: time.Now}
	spoolSize.Set(float64(s.Len()))
	return s, nil
}

// Dispatch hands n to the wrapped dispatcher and spools it on failure.
func (s *Spool) Dispatch(ctx context.Context, n *Notification) error {
	err := s.next.Dispatch(ctx, n)
	if err == nil || errors.Is(err, ErrTooLarge) {
		return err
	}
	glog.Warningf("Dispatch(): uid: %s, spooling after error: %v", n.Uid, err)
	if err := s.put(n); err != nil {
		return fmt.Errorf("spool notification: %w", err)
	}
	return nil
}

func (s *Spool) put(n *Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(spoolBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), value)
	})
	if err != nil {
		return err
	}
	spooled.Inc()
	spoolSize.Inc()
	return nil
}

type spoolEntry struct {
	key []byte
	n   *Notification
}

func (s *Spool) entries() ([]spoolEntry, error) {
	var out []spoolEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(spoolBucket).ForEach(func(k, v []byte) error {
			n := &Notification{}
			if err := json.Unmarshal(v, n); err != nil {
				glog.Errorf("entries(): drop undecodable entry %x: %v", k, err)
				n = nil
			}
			out = append(out, spoolEntry{key: append([]byte(nil), k...), n: n})
			return nil
		})
	})
	return out, err
}

func (s *Spool) delete(key []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(spoolBucket).Delete(key)
	})
	if err == nil {
		spoolSize.Dec()
	}
	return err
}

// Flush retries the spooled notifications in order, dropping the expired ones.
// It stops at the first failure and returns the number delivered.
func (s *Spool) Flush(ctx context.Context) (int, error) {
	slice, err := s.entries()
	if err != nil {
		return 0, fmt.Errorf("read spool: %w", err)
	}
	var sent int
	for _, e := range slice {
		if e.n == nil || s.now().Sub(e.n.CreateTime) > s.conf.TTL {
			if e.n != nil {
				expired.Inc()
				glog.Warningf("Flush(): uid: %s, drop notification created at %v", e.n.Uid, e.n.CreateTime)
			}
			if err := s.delete(e.key); err != nil {
				return sent, err
			}
			continue
		}
		if err := s.next.Dispatch(ctx, e.n); err != nil {
			if !errors.Is(err, ErrTooLarge) {
				return sent, err
			}
			glog.Errorf("Flush(): uid: %s, drop notification: %v", e.n.Uid, err)
		} else {
			sent++
		}
		if err := s.delete(e.key); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// Run flushes the spool every retry interval until ctx is done. Failed
// flushes are retried with backoff.
func (s *Spool) Run(ctx context.Context) {
	glog.Infof("notification spool is running, retry interval: %v, ttl: %v", s.conf.RetryInterval, s.conf.TTL)
	var sleep time.Duration
	for {
		wait := s.conf.RetryInterval
		n, err := s.Flush(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			backoff(&sleep)
			wait = sleep
			glog.Errorf("Run(): flush spool error: %v, retry in %v", err, wait)
		} else {
			sleep = 0
			if n > 0 {
				glog.Infof("Run(): delivered %d spooled notifications", n)
			}
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			glog.Info("notification spool stopped")
			return
		}
	}
}

func (s *Spool) Len() int {
	var n int
	_ = s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(spoolBucket).Stats().KeyN
		return nil
	})
	return n
}

func (s *Spool) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
