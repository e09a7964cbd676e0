package resource

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testManifest = `
name: test
sounds:
  1: songs/one.snd
  2: songs/missing.snd
audio:
  1: voice.wav
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		ManifestName:    {Data: []byte(testManifest)},
		"songs/one.snd": {Data: []byte{0xf0, 3, 0, 0xfc}},
		"voice.wav":     {Data: []byte("RIFF")},
	}
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
		err  bool
	}{
		{"sound", TypeSound, false},
		{" Songs ", TypeSound, false},
		{"audio", TypeAudio, false},
		{"patch", 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseType(c.in)
			if c.err {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
	assert.Equal(t, "sound.042", ID{Type: TypeSound, Number: 42}.String())
	assert.Equal(t, "type(9)", Type(9).String())
}

func TestBank(t *testing.T) {
	b := NewBank()
	b.Add(TypeAudio, 3, []byte{1})
	b.Add(TypeSound, 9, []byte{2})
	b.Add(TypeSound, 2, []byte{3})

	data, ok := b.Find(TypeSound, 9, true)
	require.True(t, ok)
	assert.Equal(t, []byte{2}, data)
	assert.True(t, b.Exists(TypeAudio, 3))
	assert.False(t, b.Exists(TypeAudio, 9))

	assert.Equal(t, []ID{
		{TypeSound, 2}, {TypeSound, 9}, {TypeAudio, 3},
	}, b.IDs())

	b.Remove(TypeSound, 9)
	assert.False(t, b.Exists(TypeSound, 9))

	var zero Bank
	zero.Add(TypeSound, 1, nil)
	assert.True(t, zero.Exists(TypeSound, 1))
}

func TestLibraryFind(t *testing.T) {
	fsys := testFS()
	l, err := Open(fsys, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, "test", l.Manifest().Name)

	data, ok := l.Find(TypeSound, 1, false)
	require.True(t, ok)
	assert.Equal(t, []byte{0xf0, 3, 0, 0xfc}, data)

	assert.True(t, l.Exists(TypeAudio, 1))
	assert.False(t, l.Exists(TypeSound, 2), "listed but absent")
	assert.False(t, l.Exists(TypeSound, 7), "not listed")
	_, ok = l.Find(TypeSound, 2, false)
	assert.False(t, ok)

	_, err = l.Load(ID{Type: TypeSound, Number: 7})
	assert.ErrorIs(t, err, ErrNotFound)

	name, ok := l.File(ID{Type: TypeAudio, Number: 1})
	assert.True(t, ok)
	assert.Equal(t, "voice.wav", name)

	assert.Equal(t, []ID{
		{TypeSound, 1}, {TypeSound, 2}, {TypeAudio, 1},
	}, l.IDs())
}

func TestLibraryCacheAndExact(t *testing.T) {
	fsys := testFS()
	l, err := Open(fsys, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, ok := l.Find(TypeSound, 1, false)
	require.True(t, ok)

	fsys["songs/one.snd"] = &fstest.MapFile{Data: []byte{0, 0xfc}}

	cached, _ := l.Find(TypeSound, 1, false)
	assert.Equal(t, []byte{0xf0, 3, 0, 0xfc}, cached)

	fresh, _ := l.Find(TypeSound, 1, true)
	assert.Equal(t, []byte{0, 0xfc}, fresh)

	delete(fsys, "songs/one.snd")
	assert.True(t, l.Exists(TypeSound, 1), "cached entries stay visible until reload")
	require.NoError(t, l.Reload())
	assert.False(t, l.Exists(TypeSound, 1))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	_, err = Open(fstest.MapFS{}, WithLogger(quietLogger()))
	assert.Error(t, err)

	_, err = Open(fstest.MapFS{ManifestName: {Data: []byte("sounds: [")}}, WithLogger(quietLogger()))
	assert.Error(t, err)

	_, err = OpenDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCleanResourcePath(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"a/b.snd":         "a/b.snd",
		"../../etc/x":     "etc/x",
		"/abs/voice.wav":  "abs/voice.wav",
		"./songs/./1.snd": "songs/1.snd",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanResourcePath(in), in)
	}
}

func TestIsResourceFile(t *testing.T) {
	assert.True(t, isResourceFile("bank.yaml"))
	assert.True(t, isResourceFile("x/1.SND"))
	assert.True(t, isResourceFile("v.wav"))
	assert.False(t, isResourceFile("notes.txt"))
}

func TestLibraryWatchReloads(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(ManifestName, "name: before\nsounds:\n  1: one.snd\n")
	write("one.snd", "\x00\xfc")

	l, err := OpenDir(dir, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.False(t, l.Exists(TypeSound, 2))

	w, err := l.Watch(dir)
	require.NoError(t, err)
	defer w.Close()

	write("two.snd", "\x00\xfc")
	write(ManifestName, "name: after\nsounds:\n  1: one.snd\n  2: two.snd\n")

	require.Eventually(t, func() bool {
		return l.Exists(TypeSound, 2) && l.Manifest().Name == "after"
	}, 5*time.Second, 20*time.Millisecond)
}
