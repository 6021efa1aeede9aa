package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	updatedAt time.Time
	inUse     bool
	closed    bool
}

func (f *fakeResource) UpdatedAt() time.Time { return f.updatedAt }
func (f *fakeResource) InUse() bool          { return f.inUse }
func (f *fakeResource) Close() error         { f.closed = true; return nil }

func TestGetOrRegisterBuildsOnce(t *testing.T) {
	r := New(Config{})
	builds := 0
	build := func() Resource {
		builds++
		return &fakeResource{updatedAt: time.Now()}
	}

	r.GetOrRegister("a", build)
	r.GetOrRegister("a", build)

	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, r.Len())
}

func TestGetPromotesToMRU(t *testing.T) {
	r := New(Config{})
	r.Register("a", &fakeResource{updatedAt: time.Now()})
	r.Register("b", &fakeResource{updatedAt: time.Now()})

	_, ok := r.Get("a")
	require.True(t, ok)

	el := r.order.Front()
	assert.Equal(t, "a", el.Value.(*entry).name)
}

func TestUnregisterClosesResource(t *testing.T) {
	r := New(Config{})
	res := &fakeResource{updatedAt: time.Now()}
	r.Register("a", res)

	r.Unregister("a")
	assert.True(t, res.closed)
	assert.Equal(t, 0, r.Len())
}

func TestGCEvictsOldestBeyondMaxSize(t *testing.T) {
	r := New(Config{MaxSize: 2, MinAge: 0})
	old := &fakeResource{updatedAt: time.Now().Add(-time.Hour)}
	mid := &fakeResource{updatedAt: time.Now().Add(-30 * time.Minute)}
	r.Register("old", old)
	r.Register("mid", mid)
	r.Register("new", &fakeResource{updatedAt: time.Now()})

	assert.LessOrEqual(t, r.Len(), 2)
	assert.True(t, old.closed)
}

func TestMinAgeProtectsYoungEntries(t *testing.T) {
	r := New(Config{MaxSize: 1, MinAge: time.Hour})
	r.Register("a", &fakeResource{updatedAt: time.Now()})
	r.Register("b", &fakeResource{updatedAt: time.Now()})
	r.Register("c", &fakeResource{updatedAt: time.Now()})

	// All entries are younger than MinAge, so none should be evicted even
	// though MaxSize is exceeded.
	assert.Equal(t, 3, r.Len())
}

func TestInUseEntriesAreNotEvicted(t *testing.T) {
	r := New(Config{MaxSize: 1, MinAge: 0})
	busy := &fakeResource{updatedAt: time.Now().Add(-time.Hour), inUse: true}
	r.Register("busy", busy)
	r.Register("idle", &fakeResource{updatedAt: time.Now().Add(-time.Hour)})

	assert.False(t, busy.closed)
}

func TestCloseTearsDownAllEntries(t *testing.T) {
	r := New(Config{})
	a := &fakeResource{updatedAt: time.Now()}
	b := &fakeResource{updatedAt: time.Now()}
	r.Register("a", a)
	r.Register("b", b)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 0, r.Len())
}
