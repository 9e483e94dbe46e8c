package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type failingBackend struct{}

func (failingBackend) Read(string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (failingBackend) Write(string, []byte) error  { return errors.New("disk on fire") }
func (failingBackend) Delete(string) error         { return errors.New("disk on fire") }

func TestGet_MissingKeyReturnsDefault(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(NewMemoryBackend(), log)

	got := Get(s, "nothing", []item{})

	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Empty(t, hook.Entries, "a missing key is not worth a warning")
}

func TestSetGet_RoundTrip(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := New(NewMemoryBackend(), log)

	in := []item{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	s.Set(KeyReports, in)

	assert.Equal(t, in, Get(s, KeyReports, []item(nil)))
}

func TestGet_CorruptValueReturnsDefault(t *testing.T) {
	log, hook := test.NewNullLogger()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write(KeyAlerts, []byte("{not json")))
	s := New(backend, log)

	got := Get(s, KeyAlerts, []item{{ID: "default"}})

	assert.Equal(t, []item{{ID: "default"}}, got)
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	logged, ok := hook.LastEntry().Data[logrus.ErrorKey].(error)
	require.True(t, ok)
	assert.ErrorIs(t, logged, ErrCorrupted)
}

func TestFailingBackend_NeverPanicsOrReturnsErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(failingBackend{}, log)

	assert.Equal(t, 42, Get(s, "k", 42))
	s.Set("k", 1)
	s.Remove("k")

	assert.Len(t, hook.Entries, 3)
}

func TestSet_UnencodableValueIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(NewMemoryBackend(), log)

	s.Set("k", make(chan int))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRemove_Idempotent(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(NewMemoryBackend(), log)

	s.Set("k", "v")
	s.Remove("k")
	s.Remove("k")

	assert.Equal(t, "gone", Get(s, "k", "gone"))
	assert.Empty(t, hook.Entries)
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	fb, err := NewFileBackend(dir)
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		_, err := fb.Read("absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("write and read", func(t *testing.T) {
		require.NoError(t, fb.Write("reports", []byte(`[1,2]`)))

		data, err := fb.Read("reports")
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, string(data))

		info, err := os.Stat(filepath.Join(dir, "reports.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		_, err = os.Stat(filepath.Join(dir, "reports.json.tmp"))
		assert.True(t, os.IsNotExist(err), "temp file must not survive a write")
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, fb.Write("reports", []byte(`[3]`)))
		data, err := fb.Read("reports")
		require.NoError(t, err)
		assert.JSONEq(t, `[3]`, string(data))
	})

	t.Run("delete twice", func(t *testing.T) {
		require.NoError(t, fb.Delete("reports"))
		require.NoError(t, fb.Delete("reports"))
		_, err := fb.Read("reports")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		assert.Error(t, fb.Write("../escape", []byte(`1`)))
		_, err := fb.Read("a/b")
		assert.Error(t, err)
	})
}

func TestFileBackend_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	log, _ := test.NewNullLogger()

	fb, err := NewFileBackend(dir)
	require.NoError(t, err)
	New(fb, log).Set(KeyContacts, []item{{ID: "c1"}})

	reopened, err := NewFileBackend(dir)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "c1"}}, Get(New(reopened, log), KeyContacts, []item{}))
}

// Runs against a real server when CITYREPORT_TEST_REDIS is set, e.g. localhost:6379.
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("CITYREPORT_TEST_REDIS")
	if addr == "" {
		t.Skip("CITYREPORT_TEST_REDIS not set")
	}

	client, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	rb := NewRedisBackend(client, "cityreport-test:"+t.Name()+":")
	defer rb.Delete("k")

	_, err = rb.Read("k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, rb.Write("k", []byte(`{"a":1}`)))
	data, err := rb.Read("k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, rb.Delete("k"))
	_, err = rb.Read("k")
	assert.ErrorIs(t, err, ErrNotFound)
}
