package main

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"github.com/alexedwards/argon2id"
	"github.com/apibillme/cache"
	_ "github.com/mattn/go-sqlite3"
	"log"
	"os"
	"path/filepath"
	"time"
)

type Store struct {
	db        *sql.DB
	log       *log.Logger
	userCache cache.Cache
}

const reqTable string = `
  CREATE TABLE IF NOT EXISTS reqdata (
      httpdata BLOB NOT NULL,
      hash TEXT NOT NULL,
      expiry INT NOT NULL
  )
`

const reqIndex string = `
  CREATE INDEX IF NOT EXISTS reqdata_hash ON reqdata (hash)
`

const userTable string = `
  CREATE TABLE IF NOT EXISTS users (
      user TEXT NOT NULL UNIQUE,
      hash TEXT NOT NULL,
      level INT NOT NULL
  )
`

const dbFile string = "data/cache.db"

func NewStore(cfg *Config) (*Store, error) {
	logger := log.New(os.Stderr, "(store) ", log.LstdFlags)

	filename := dbFile
	if cfg.Database != "" {
		filename = cfg.Database
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+filename)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	for _, stmt := range []string{reqTable, reqIndex, userTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{
		db:        db,
		log:       logger,
		userCache: cache.New(256, cache.WithTTL(1*time.Hour)),
	}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

func (store *Store) DeleteBefore(expiry int64) {
	_, err := store.db.Exec("DELETE FROM reqdata WHERE expiry < ?", expiry)
	if err != nil {
		store.log.Println("DB Error", err)
	}
}

// GetResponse returns the newest unexpired response stored under hash.
func (store *Store) GetResponse(hash string) ([]byte, bool) {
	row := store.db.QueryRow(
		"SELECT httpdata FROM reqdata WHERE hash = ? AND expiry >= ? ORDER BY expiry DESC LIMIT 1",
		hash, time.Now().Unix())
	var data []byte
	err := row.Scan(&data)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, sql.ErrNoRows) {
		store.log.Println("DB Error", err)
	}
	return nil, false
}

func (store *Store) StoreResponse(hash string, res []byte, expiry int64) {
	_, err := store.db.Exec("INSERT INTO reqdata VALUES (?,?,?)",
		res,
		hash,
		expiry,
	)
	if err != nil {
		store.log.Println("DB Error", err)
	}
}

func (store *Store) AddUser(user string, pass string, level int) error {
	if user == "" || pass == "" {
		return errors.New("user and password must not be empty")
	}
	hash, err := argon2id.CreateHash(pass, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	_, err = store.db.Exec(
		"INSERT INTO users (user, hash, level) VALUES (?,?,?) ON CONFLICT(user) DO UPDATE SET hash = excluded.hash, level = excluded.level",
		user, hash, level)
	return err
}

func (store *Store) TestUser(user string, pass string) bool {
	userPass, ok := store.userCache.Get(user)
	if ok && 1 == subtle.ConstantTimeCompare([]byte(userPass.(string)), []byte(pass)) {
		return true
	}
	row := store.db.QueryRow("SELECT hash FROM users WHERE user = ?", user)
	var hash string
	err := row.Scan(&hash)
	if err == nil {
		match, err := argon2id.ComparePasswordAndHash(pass, hash)
		if err != nil {
			store.log.Println("Error comparing password hashes", err.Error())
			return false
		}
		if match {
			store.userCache.Set(user, pass)
			return true
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		store.log.Println(err.Error())
	}
	return false
}
