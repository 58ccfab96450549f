package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/neogan74/auditledger/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]Engine {
	t.Helper()

	badgerEngine, err := NewBadgerEngine(t.TempDir(), false, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerEngine.Close() })

	return map[string]Engine{
		"memory": NewMemoryEngine(),
		"badger": badgerEngine,
	}
}

func TestEngine_SetGet(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := engine.Update(func(tx Txn) error {
				return tx.Set("audits/a1", []byte(`{"code":"A-1"}`))
			})
			require.NoError(t, err)

			err = engine.View(func(tx Txn) error {
				value, err := tx.Get("audits/a1")
				require.NoError(t, err)
				assert.JSONEq(t, `{"code":"A-1"}`, string(value))

				_, err = tx.Get("audits/missing")
				assert.True(t, IsNotFound(err))
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestEngine_UpdateRollsBackOnError(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			err := engine.Update(func(tx Txn) error {
				require.NoError(t, tx.Set("k1", []byte("v1")))
				require.NoError(t, tx.Set("k2", []byte("v2")))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			_ = engine.View(func(tx Txn) error {
				_, err := tx.Get("k1")
				assert.True(t, IsNotFound(err))
				_, err = tx.Get("k2")
				assert.True(t, IsNotFound(err))
				return nil
			})
		})
	}
}

func TestEngine_ReadYourWrites(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := engine.Update(func(tx Txn) error {
				require.NoError(t, tx.Set("items/a/2", []byte("two")))
				require.NoError(t, tx.Set("items/a/1", []byte("one")))

				value, err := tx.Get("items/a/2")
				require.NoError(t, err)
				assert.Equal(t, "two", string(value))

				var keys []string
				require.NoError(t, tx.Scan("items/a/", func(key string, _ []byte) error {
					keys = append(keys, key)
					return nil
				}))
				assert.Equal(t, []string{"items/a/1", "items/a/2"}, keys)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestEngine_ScanOrderAndPrefix(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, engine.Update(func(tx Txn) error {
				for _, key := range []string{"ledger/x/003", "ledger/x/001", "ledger/y/001", "ledger/x/002"} {
					if err := tx.Set(key, []byte(key)); err != nil {
						return err
					}
				}
				return nil
			}))

			var keys []string
			require.NoError(t, engine.View(func(tx Txn) error {
				return tx.Scan("ledger/x/", func(key string, value []byte) error {
					assert.Equal(t, key, string(value))
					keys = append(keys, key)
					return nil
				})
			}))
			assert.Equal(t, []string{"ledger/x/001", "ledger/x/002", "ledger/x/003"}, keys)
		})
	}
}

func TestEngine_ScanStopsOnError(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, engine.Update(func(tx Txn) error {
				_ = tx.Set("p/1", []byte("1"))
				return tx.Set("p/2", []byte("2"))
			}))

			stop := errors.New("stop")
			calls := 0
			err := engine.View(func(tx Txn) error {
				return tx.Scan("p/", func(string, []byte) error {
					calls++
					return stop
				})
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestEngine_Delete(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, engine.Update(func(tx Txn) error {
				for _, key := range []string{"items/a/1", "items/a/2", "items/a/3"} {
					require.NoError(t, tx.Set(key, []byte(key)))
				}
				return nil
			}))

			require.NoError(t, engine.Update(func(tx Txn) error {
				require.NoError(t, tx.Delete("items/a/2"))
				require.NoError(t, tx.Delete("items/a/missing"))

				_, err := tx.Get("items/a/2")
				assert.True(t, IsNotFound(err))

				var keys []string
				require.NoError(t, tx.Scan("items/a/", func(key string, _ []byte) error {
					keys = append(keys, key)
					return nil
				}))
				assert.Equal(t, []string{"items/a/1", "items/a/3"}, keys)
				return nil
			}))

			// A rolled back delete leaves the key in place.
			_ = engine.Update(func(tx Txn) error {
				require.NoError(t, tx.Delete("items/a/1"))
				return errors.New("abort")
			})

			_ = engine.View(func(tx Txn) error {
				_, err := tx.Get("items/a/1")
				assert.NoError(t, err)
				_, err = tx.Get("items/a/2")
				assert.True(t, IsNotFound(err))
				return nil
			})
		})
	}
}

func TestMemoryEngine_ViewIsReadOnly(t *testing.T) {
	engine := NewMemoryEngine()
	err := engine.View(func(tx Txn) error {
		return tx.Set("k", []byte("v"))
	})
	assert.Error(t, err)
}

func TestMemoryEngine_ConcurrentUpdates(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.Update(func(tx Txn) error {
		return tx.Set("counter", []byte("0"))
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.Update(func(tx Txn) error {
				raw, err := tx.Get("counter")
				if err != nil {
					return err
				}
				var n int
				_ = json.Unmarshal(raw, &n)
				out, _ := json.Marshal(n + 1)
				return tx.Set("counter", out)
			})
		}()
	}
	wg.Wait()

	_ = engine.View(func(tx Txn) error {
		raw, err := tx.Get("counter")
		require.NoError(t, err)
		assert.Equal(t, "50", string(raw))
		return nil
	})
}

func TestBadgerEngine_Conflict(t *testing.T) {
	engine, err := NewBadgerEngine(t.TempDir(), false, logger.NewNop())
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	require.NoError(t, engine.Update(func(tx Txn) error {
		return tx.Set("head", []byte("0"))
	}))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- engine.Update(func(tx Txn) error {
			if _, err := tx.Get("head"); err != nil {
				return err
			}
			close(entered)
			<-release
			return tx.Set("head", []byte("slow"))
		})
	}()

	<-entered
	require.NoError(t, engine.Update(func(tx Txn) error {
		if _, err := tx.Get("head"); err != nil {
			return err
		}
		return tx.Set("head", []byte("fast"))
	}))
	close(release)

	err = <-done
	assert.True(t, IsConflict(err), "expected conflict, got %v", err)
}

func TestBadgerEngine_Persistence(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir, true, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, engine.Update(func(tx Txn) error {
		return tx.Set("ledger/head/asset-1", []byte(`{"seq":1}`))
	}))
	require.NoError(t, engine.Close())

	reopened, err := NewBadgerEngine(dir, true, logger.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NoError(t, reopened.View(func(tx Txn) error {
		value, err := tx.Get("ledger/head/asset-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"seq":1}`, string(value))
		return nil
	}))
}

func TestEngine_Backup(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, engine.Update(func(tx Txn) error {
				return tx.Set("audits/a1", []byte(`{"id":"a1"}`))
			}))

			path := filepath.Join(t.TempDir(), "nested", "backup.bak")
			require.NoError(t, engine.Backup(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestNewEngine(t *testing.T) {
	log := logger.NewNop()

	engine, err := NewEngine(Config{Type: "memory"}, log)
	require.NoError(t, err)
	assert.IsType(t, &MemoryEngine{}, engine)

	engine, err = NewEngine(Config{Type: "badger", DataDir: t.TempDir()}, log)
	require.NoError(t, err)
	assert.IsType(t, &BadgerEngine{}, engine)
	require.NoError(t, engine.Close())

	_, err = NewEngine(Config{Type: "bolt"}, log)
	assert.Error(t, err)
}
