package kvstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/pkg/errors"

	"github.com/fmartingr/mattermost-plugin-video-downloader/server/delivery"
)

// We expose our calls to the KVStore pluginapi methods through this type for testability and stability.
// This allows us to better control which values are stored with which keys.

const (
	pendingKeyPrefix = "pending_"
	listPageSize     = 200
)

// PendingStore keeps pending deliveries in the plugin KV store so any server in a cluster
// can complete a selection. It implements delivery.PendingStore.
type PendingStore struct {
	client *pluginapi.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ delivery.PendingStore = (*PendingStore)(nil)

// NewPendingStore creates a KV-backed pending store whose records expire after ttl
func NewPendingStore(client *pluginapi.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func pendingKey(id string) string {
	return pendingKeyPrefix + id
}

// Put stores a pending delivery. The KV expiry is twice the TTL so the janitor gets a
// chance to sweep the record and remove its artifact before the server drops it.
func (s *PendingStore) Put(id string, pending *delivery.PendingDelivery) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pending delivery")
	}

	var options []pluginapi.KVSetOption
	if s.ttl > 0 {
		options = append(options, pluginapi.SetExpiry(2*s.ttl))
	}

	if _, err := s.client.KV.Set(pendingKey(id), data, options...); err != nil {
		return errors.Wrap(err, "failed to store pending delivery")
	}
	return nil
}

// Take atomically removes and returns a pending delivery
func (s *PendingStore) Take(id string) (*delivery.PendingDelivery, error) {
	key := pendingKey(id)

	raw, pending, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Expired(s.now(), s.ttl) {
		return nil, nil
	}

	deleted, err := s.client.KV.Set(key, nil, pluginapi.SetAtomic(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to remove pending delivery")
	}
	if !deleted {
		// taken concurrently
		return nil, nil
	}

	return pending, nil
}

// Len counts live pending deliveries
func (s *PendingStore) Len() (int, error) {
	now := s.now()
	count := 0
	err := s.each(func(_ string, _ []byte, pending *delivery.PendingDelivery) error {
		if !pending.Expired(now, s.ttl) {
			count++
		}
		return nil
	})
	return count, err
}

// Sweep removes every expired pending delivery and returns them
func (s *PendingStore) Sweep(now time.Time) ([]*delivery.PendingDelivery, error) {
	var expired []*delivery.PendingDelivery
	err := s.each(func(key string, raw []byte, pending *delivery.PendingDelivery) error {
		if !pending.Expired(now, s.ttl) {
			return nil
		}
		deleted, err := s.client.KV.Set(key, nil, pluginapi.SetAtomic(raw))
		if err != nil {
			return errors.Wrap(err, "failed to remove expired pending delivery")
		}
		if deleted {
			expired = append(expired, pending)
		}
		return nil
	})
	return expired, err
}

func (s *PendingStore) load(key string) ([]byte, *delivery.PendingDelivery, error) {
	var raw []byte
	if err := s.client.KV.Get(key, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "failed to get pending delivery")
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	var pending delivery.PendingDelivery
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal pending delivery")
	}
	return raw, &pending, nil
}

// each visits every pending record. Keys are collected first so deletions during the
// visit do not shift the pages being read.
func (s *PendingStore) each(visit func(key string, raw []byte, pending *delivery.PendingDelivery) error) error {
	var keys []string
	for page := 0; ; page++ {
		pageKeys, err := s.client.KV.ListKeys(page, listPageSize)
		if err != nil {
			return errors.Wrap(err, "failed to list pending deliveries")
		}
		for _, key := range pageKeys {
			if strings.HasPrefix(key, pendingKeyPrefix) {
				keys = append(keys, key)
			}
		}
		if len(pageKeys) < listPageSize {
			break
		}
	}

	for _, key := range keys {
		raw, pending, err := s.load(key)
		if err != nil {
			return err
		}
		if pending == nil {
			continue
		}
		if err := visit(key, raw, pending); err != nil {
			return err
		}
	}
	return nil
}
