package store

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/gloworm-vision/gloworm-led/hardware"
)

type Badger struct {
	db *badger.DB
}

const (
	badgerHardwareKey       = "hardware"
	badgerLEDSettingsPrefix = "led-settings/"
)

// OpenBadger opens a badger DB with the given options as a store.
func OpenBadger(options badger.Options) (*Badger, error) {
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("unable to open badger db: %w", err)
	}

	return &Badger{db: db}, nil
}

// OpenBadgerInMemory opens a store that lives only as long as the process.
func OpenBadgerInMemory(logger badger.Logger) (*Badger, error) {
	return OpenBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(logger))
}

// compile-time check for whether Badger satisfies the Store interface
var _ Store = &Badger{}

func (b *Badger) Close() error {
	return b.db.Close()
}

func getJSON(tx *badger.Txn, key string, v interface{}) error {
	item, err := tx.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("couldn't get %q: %w", key, err)
	}

	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("couldn't decode %q: %w", key, err)
		}
		return nil
	})
}

func setJSON(tx *badger.Txn, key string, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("couldn't encode %q: %w", key, err)
	}

	return tx.Set([]byte(key), buf)
}

func (b *Badger) HardwareConfig() (hardware.Config, error) {
	var h hardware.Config
	err := b.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, badgerHardwareKey, &h)
	})
	if err != nil {
		return h, fmt.Errorf("unable to get hardware config: %w", err)
	}

	return h, nil
}

func (b *Badger) PutHardwareConfig(h hardware.Config) error {
	err := b.db.Update(func(tx *badger.Txn) error {
		return setJSON(tx, badgerHardwareKey, h)
	})
	if err != nil {
		return fmt.Errorf("unable to update hardware config: %w", err)
	}

	return nil
}

func (b *Badger) LEDSettings(name string) (LEDSettings, error) {
	var s LEDSettings
	err := b.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, badgerLEDSettingsPrefix+name, &s)
	})
	if err != nil {
		return s, fmt.Errorf("unable to get led settings %q: %w", name, err)
	}

	return s, nil
}

func (b *Badger) ListLEDSettings() (map[string]LEDSettings, error) {
	settings := make(map[string]LEDSettings)

	err := b.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerLEDSettingsPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])

			var s LEDSettings
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return fmt.Errorf("couldn't decode led settings %q: %w", name, err)
			}

			settings[name] = s
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list led settings: %w", err)
	}

	return settings, nil
}

func (b *Badger) PutLEDSettings(name string, s LEDSettings) error {
	err := b.db.Update(func(tx *badger.Txn) error {
		return setJSON(tx, badgerLEDSettingsPrefix+name, s)
	})
	if err != nil {
		return fmt.Errorf("unable to update led settings: %w", err)
	}

	return nil
}
