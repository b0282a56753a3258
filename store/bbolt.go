package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"go.etcd.io/bbolt"
)

type BBolt struct {
	db *bbolt.DB
}

const (
	bboltRootBucket        = "gloworm-led"
	bboltLEDSettingsBucket = "led-settings" // child of root

	// root keys
	bboltHardwareKey = "hardware"
)

// OpenBBolt opens a BBoltDB database at the given path and creates the needed buckets
// if they don't exist.
func OpenBBolt(path string, mode os.FileMode, options *bbolt.Options) (*BBolt, error) {
	db, err := bbolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		rootBucket, err := tx.CreateBucketIfNotExists([]byte(bboltRootBucket))
		if err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bboltRootBucket, err)
		}

		_, err = rootBucket.CreateBucketIfNotExists([]byte(bboltLEDSettingsBucket))
		if err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bboltLEDSettingsBucket, err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create bbolt buckets: %w", err)
	}

	return &BBolt{
		db: db,
	}, nil
}

// compile-time check for whether BBolt satisfies the Store interface
var _ Store = &BBolt{}

func (b *BBolt) Close() error {
	return b.db.Close()
}

func (b *BBolt) LEDSettings(name string) (LEDSettings, error) {
	var s LEDSettings
	err := b.db.View(func(tx *bbolt.Tx) error {
		settingsBucket := tx.Bucket([]byte(bboltRootBucket)).Bucket([]byte(bboltLEDSettingsBucket))

		settingsJSON := settingsBucket.Get([]byte(name))
		if settingsJSON == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(settingsJSON, &s); err != nil {
			return fmt.Errorf("unable to unmarshal led settings JSON: %w", err)
		}

		return nil
	})
	if err != nil {
		return s, fmt.Errorf("unable to get led settings %q: %w", name, err)
	}

	return s, nil
}

func (b *BBolt) ListLEDSettings() (map[string]LEDSettings, error) {
	settings := make(map[string]LEDSettings)

	err := b.db.View(func(tx *bbolt.Tx) error {
		settingsBucket := tx.Bucket([]byte(bboltRootBucket)).Bucket([]byte(bboltLEDSettingsBucket))

		err := settingsBucket.ForEach(func(k, v []byte) error {
			var s LEDSettings
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("unable to unmarshal led settings %q: %w", k, err)
			}

			settings[string(k)] = s
			return nil
		})
		if err != nil {
			return fmt.Errorf("unable to iterate over led settings bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list led settings: %w", err)
	}

	return settings, nil
}

func (b *BBolt) PutLEDSettings(name string, s LEDSettings) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		settingsJSON, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("unable to marshal led settings: %w", err)
		}

		settingsBucket := tx.Bucket([]byte(bboltRootBucket)).Bucket([]byte(bboltLEDSettingsBucket))
		if err := settingsBucket.Put([]byte(name), settingsJSON); err != nil {
			return fmt.Errorf("unable to put led settings %q: %w", name, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to update led settings: %w", err)
	}

	return nil
}

func (b *BBolt) HardwareConfig() (hardware.Config, error) {
	var h hardware.Config
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bboltRootBucket))
		hardwareJSON := bucket.Get([]byte(bboltHardwareKey))
		if hardwareJSON == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(hardwareJSON, &h); err != nil {
			return fmt.Errorf("unable to unmarshal hardware config JSON: %w", err)
		}

		return nil
	})
	if err != nil {
		return h, fmt.Errorf("unable to get hardware config: %w", err)
	}

	return h, nil
}

func (b *BBolt) PutHardwareConfig(h hardware.Config) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		hardwareJSON, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("unable to marshal hardware config: %w", err)
		}

		bucket := tx.Bucket([]byte(bboltRootBucket))
		if err := bucket.Put([]byte(bboltHardwareKey), hardwareJSON); err != nil {
			return fmt.Errorf("unable to put hardware config: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to update hardware config: %w", err)
	}

	return nil
}
