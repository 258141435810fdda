package cfb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) []byte {
	t.Helper()
	w := NewWriter()
	_, err := w.CreateStream(w.Root(), "Keep", []byte("keep me"))
	require.NoError(t, err)
	_, err = w.CreateStream(w.Root(), "DropMe", []byte("gone soon"))
	require.NoError(t, err)
	sub, err := w.CreateStorage(w.Root(), "Sub")
	require.NoError(t, err)
	_, err = w.CreateStream(sub, "Inner", []byte("inner bytes"))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestEditorRenameDeleteAddThenSave(t *testing.T) {
	raw := buildSample(t)
	ed, err := NewEditor(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	require.NoError(t, ed.Delete("/DropMe"))
	require.NoError(t, ed.Rename("/Keep", "Kept"))
	_, err = ed.AddStream("/Sub", "NewOne", []byte("added"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ed.Save(&out))

	r, err := NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Root().Child("DropMe")
	require.Error(t, err)

	kept, err := r.Root().Child("Kept")
	require.NoError(t, err)
	s, err := r.Open(kept)
	require.NoError(t, err)
	got, err := s.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "keep me", string(got))

	added, err := r.OpenPath("/Sub/NewOne")
	require.NoError(t, err)
	got2, err := added.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "added", string(got2))

	inner, err := r.OpenPath("/Sub/Inner")
	require.NoError(t, err)
	got3, err := inner.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "inner bytes", string(got3))
}

func TestEditorDeleteCascadesToChildren(t *testing.T) {
	raw := buildSample(t)
	ed, err := NewEditor(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.NoError(t, ed.Delete("/Sub"))

	var out bytes.Buffer
	require.NoError(t, ed.Save(&out))

	r, err := NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Root().Child("Sub")
	require.Error(t, err)
	_, err = r.OpenPath("/Sub/Inner")
	require.Error(t, err)
}

func TestEditorRenameCollisionFails(t *testing.T) {
	raw := buildSample(t)
	ed, err := NewEditor(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Error(t, ed.Rename("/Keep", "DropMe"))
}

func TestEditorCannotDeleteOrRenameRoot(t *testing.T) {
	raw := buildSample(t)
	ed, err := NewEditor(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Error(t, ed.Delete("/"))
	require.Error(t, ed.Rename("/", "NewRootName"))
}
