package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	recordPrefix = "terrain:"
	gridPrefix   = "heights:"
)

// TerrainStorage хранит ландшафты в BadgerDB.
// Описание лежит в JSON под terrain:<id>, сетка сжата zstd и лежит под heights:<id>.
type TerrainStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewTerrainStorage создает хранилище в dataPath/terrain
func NewTerrainStorage(dataPath string) (*TerrainStorage, error) {
	dbPath := filepath.Join(dataPath, "terrain")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &TerrainStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close закрывает хранилище данных
func (ts *TerrainStorage) Close() error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if !ts.isReady {
		return nil
	}

	ts.isReady = false
	ts.encoder.Close()
	ts.decoder.Close()
	return ts.db.Close()
}

// Save сохраняет описание и сетку одной транзакцией
func (ts *TerrainStorage) Save(ctx context.Context, rec *Record, grid *heightmap.Grid) error {
	if rec == nil || grid == nil {
		return fmt.Errorf("пустой ландшафт")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	if !ts.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	// Сериализуем описание в JSON
	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации описания: %w", err)
	}

	raw, err := grid.MarshalBinary()
	if err != nil {
		return fmt.Errorf("ошибка сериализации сетки: %w", err)
	}
	compressed := ts.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	err = ts.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordPrefix+rec.ID), meta); err != nil {
			return err
		}
		return txn.Set([]byte(gridPrefix+rec.ID), compressed)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadRecord загружает описание ландшафта
func (ts *TerrainStorage) LoadRecord(ctx context.Context, id string) (*Record, error) {
	data, err := ts.get(recordPrefix + id)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации описания: %w", err)
	}
	return &rec, nil
}

// LoadGrid загружает и распаковывает сетку высот
func (ts *TerrainStorage) LoadGrid(ctx context.Context, id string) (*heightmap.Grid, error) {
	compressed, err := ts.get(gridPrefix + id)
	if err != nil {
		return nil, err
	}

	raw, err := ts.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки сетки: %w", err)
	}

	grid := &heightmap.Grid{}
	if err := grid.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return grid, nil
}

// Delete удаляет описание и сетку
func (ts *TerrainStorage) Delete(ctx context.Context, id string) error {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	if !ts.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := ts.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(recordPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(gridPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// List возвращает описания, новые первыми
func (ts *TerrainStorage) List(ctx context.Context, limit int) ([]*Record, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	if !ts.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var out []*Record
	err := ts.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка из BadgerDB: %w", err)
	}

	return limitRecords(sortRecords(out), limit), nil
}

func (ts *TerrainStorage) get(key string) ([]byte, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	if !ts.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := ts.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}
