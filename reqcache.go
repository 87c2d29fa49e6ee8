package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"time"
)

// ReqCache replays successful upstream responses out of the Store.
type ReqCache struct {
	store *Store
	ttl   time.Duration
	log   *log.Logger
}

func NewReqCache(ctx context.Context, cfg *Config, store *Store) *ReqCache {
	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rc := ReqCache{
		store: store,
		ttl:   ttl,
		log:   log.New(os.Stderr, "(cache) ", log.LstdFlags),
	}
	go rc.purgeExpired(ctx)
	return &rc
}

func (rc *ReqCache) purgeExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		rc.store.DeleteBefore(time.Now().Unix())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func requestHash(req *http.Request) string {
	reqBytes, _ := httputil.DumpRequest(req, true)
	md5Hash := md5.Sum(reqBytes)
	return hex.EncodeToString(md5Hash[:])
}

// CachedFetch answers req from the cache when possible. Only 2xx responses
// are stored.
func (rc *ReqCache) CachedFetch(req *http.Request, client *http.Client) (*http.Response, error) {
	reqHash := requestHash(req)
	data, ok := rc.store.GetResponse(reqHash)
	if ok {
		res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
		if err == nil {
			return res, nil
		}
		rc.log.Println("Problems decoding cached result", err.Error())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}
	respBytes, err := httputil.DumpResponse(resp, true)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rc.log.Println("MISS", req.URL.Path)
	rc.store.StoreResponse(reqHash, respBytes, time.Now().Add(rc.ttl).Unix())
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes)), req)
}
