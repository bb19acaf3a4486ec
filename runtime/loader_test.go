package runtime

import (
	"chat-relay/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	files := fstest.MapFS{
		"words/en.txt":         {Data: []byte("spam\r\ntroll\n\n  phishing  \n")},
		"words/fr.txt":         {Data: []byte("arnaque\nspam\n")},
		"words/README.md":      {Data: []byte("not a list")},
		"words/old/legacy.txt": {Data: []byte("ignored")},
	}

	// When the lists are loaded
	data, err := NewCensoredLoader(files).LoadAll("words")

	// Then words are merged without duplicates and other files are skipped
	req.NoError(err)
	req.Equal([]string{"arnaque", "phishing", "spam", "troll"}, data.Words)
	req.Equal([]string{"en", "fr"}, data.Lists)
}

func TestCensoredLoader_LoadAll_Empty(t *testing.T) {
	req := require.New(t)
	files := fstest.MapFS{
		"words/en.txt": {Data: []byte("\n   \n")},
	}

	_, err := NewCensoredLoader(files).LoadAll("words")
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestCensoredLoader_LoadAll_MissingDir(t *testing.T) {
	req := require.New(t)

	_, err := NewCensoredLoader(fstest.MapFS{}).LoadAll("words")
	req.Error(err)
}
