package pathtmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	got, err := Expand("items/:id", map[string]any{"id": 42})
	require.NoError(t, err)
	assert.Equal(t, "items/42", got)

	got, err = Expand("/orders/:order/lines/:line", map[string]string{"order": "a1", "line": "3", "extra": "x"})
	require.NoError(t, err)
	assert.Equal(t, "/orders/a1/lines/3", got)
}

func TestExpandMissingParameter(t *testing.T) {
	_, err := Expand("items/:id", map[string]any{"other": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}

func TestExpandEscapesValues(t *testing.T) {
	got, err := Expand("items/:id", map[string]any{"id": "a b?c"})
	require.NoError(t, err)
	assert.Equal(t, "items/a%20b%3Fc", got)

	got, err = Expand("files/:name/raw", map[string]string{"name": "dir/file.txt"})
	require.NoError(t, err)
	assert.Equal(t, "files/dir%2Ffile.txt/raw", got)
}

func TestExpandNilIsMissing(t *testing.T) {
	_, err := Expand("items/:id", map[string]any{"id": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")
}

func TestExpandPatternMismatch(t *testing.T) {
	_, err := Expand(`items/:id(\d+)`, map[string]any{"id": "abc"})
	assert.Error(t, err)

	got, err := Expand(`items/:id(\d+)`, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "items/7", got)
}

func TestExpandRejectsNonMapping(t *testing.T) {
	_, err := Expand("items/:id", []int{1})
	assert.ErrorIs(t, err, ErrParams)
}

func TestNamesAndURITemplate(t *testing.T) {
	tmpl, err := Compile(`users/:user/posts/:post(\d+)/{tag}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "post", "tag"}, tmpl.Names())
	assert.Equal(t, "/users/{user}/posts/{post}/{tag}", tmpl.URITemplate())
}
