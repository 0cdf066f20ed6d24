package credstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
)

var credentialsBucket = []byte("Credentials")

// BoltDB keeps every credential scope in one bbolt file.
// Each scope is a nested bucket holding the "token" and "user" fields.
type BoltDB struct {
	db     *bbolt.DB
	logger core.Logger
}

var _ session.Scoped = (*BoltDB)(nil)

// Open opens (or creates) the credential database at path.
func Open(path string, logger core.Logger) (*BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating credential dir")
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating credentials bucket")
	}
	return &BoltDB{db: db, logger: logger}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) Scope(id string) session.Store {
	return &boltStore{parent: b, scope: []byte(id)}
}

type boltStore struct {
	parent *BoltDB
	scope  []byte
}

func (s *boltStore) Save(ctx context.Context, cred session.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token, user, err := encode(cred)
	if err != nil {
		return err
	}
	// both fields in one transaction
	err = s.parent.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(credentialsBucket).CreateBucketIfNotExists(s.scope)
		if err != nil {
			return err
		}
		if err := b.Put(tokenKey, token); err != nil {
			return err
		}
		return b.Put(userKey, user)
	})
	return dbError(err, "saving credential")
}

func (s *boltStore) Load(ctx context.Context) (session.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return session.Credential{}, false, err
	}

	var token, user []byte
	err := s.parent.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket).Bucket(s.scope)
		if b == nil {
			return nil
		}
		// values are only valid inside the transaction
		if v := b.Get(tokenKey); v != nil {
			token = append([]byte{}, v...)
		}
		if v := b.Get(userKey); v != nil {
			user = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return session.Credential{}, false, dbError(err, "reading credential")
	}

	cred, ok, err := decode(token, user)
	if err != nil {
		s.parent.logger.Warn("clearing corrupted credential", err, session.ScopeID(s.scope))
		if err := s.Clear(ctx); err != nil {
			return session.Credential{}, false, err
		}
		return session.Credential{}, false, nil
	}
	return cred, ok, nil
}

func (s *boltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.parent.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(credentialsBucket).DeleteBucket(s.scope)
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	return dbError(err, "clearing credential")
}

// dbError turns a closed database into a shutdown error; nothing can be served without it.
func dbError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return core.NewShutdownError(op + ": credential database is closed")
	}
	return errors.Wrap(err, op)
}
