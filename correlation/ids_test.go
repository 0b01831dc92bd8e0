package correlation_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/correlation"
)

func TestGenerators_ProduceDistinctIDs(t *testing.T) {
	for _, name := range []string{"uuid", "xid"} {
		t.Run(name, func(t *testing.T) {
			gen, err := correlation.GeneratorByName(name)
			require.NoError(t, err)

			const n = 2000

			var (
				mu   sync.Mutex
				seen = make(map[string]struct{}, n)
				wg   sync.WaitGroup
			)

			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id := gen.NewID()
					mu.Lock()
					seen[id] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, seen, n)
		})
	}
}

func TestGeneratorByName_Unknown(t *testing.T) {
	_, err := correlation.GeneratorByName("snowflake")
	assert.ErrorIs(t, err, berr.ErrInvalidConfig)
}
