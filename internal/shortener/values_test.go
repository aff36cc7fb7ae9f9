package shortener_test

import (
	"strings"
	"testing"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewURL(t *testing.T) {
	t.Run("prepends https when scheme is missing", func(t *testing.T) {
		u, err := shortener.NewURL("example.com/path")

		require.NoError(t, err)
		assert.Equal(t, shortener.URL("https://example.com/path"), u)
	})

	t.Run("keeps supported schemes", func(t *testing.T) {
		for _, raw := range []string{"http://example.com", "https://example.com", "ftp://files.example.com"} {
			u, err := shortener.NewURL(raw)

			require.NoError(t, err)
			assert.Equal(t, shortener.URL(raw), u)
		}
	})

	t.Run("strips whitespace and control characters", func(t *testing.T) {
		u, err := shortener.NewURL("  https://exa mple.com/\tpa\nth\x00 ")

		require.NoError(t, err)
		assert.Equal(t, shortener.URL("https://example.com/path"), u)
	})

	t.Run("is idempotent", func(t *testing.T) {
		first, err := shortener.NewURL(" example.com/a b ")
		require.NoError(t, err)

		second, err := shortener.NewURL(first.String())
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := shortener.NewURL(" \t ")

		assert.ErrorIs(t, err, shortener.ErrValidation)
	})

	t.Run("rejects overlong input", func(t *testing.T) {
		_, err := shortener.NewURL("https://example.com/" + strings.Repeat("a", shortener.MaxURLLength))

		assert.ErrorIs(t, err, shortener.ErrValidation)
	})
}

func TestValidateDestination(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://sub.example.co.uk/path?q=1",
		"ftp://files.example.org/file.txt",
		"http://localhost:8080/x",
		"http://127.0.0.1/",
	}

	for _, raw := range valid {
		t.Run("accepts "+raw, func(t *testing.T) {
			assert.NoError(t, shortener.ValidateDestination(shortener.URL(raw)))
		})
	}

	invalid := []string{
		"https://notaurl",
		"https://",
		"mailto://someone@example.com",
		"https://example.com:99999/",
		"https://exa_mple..com",
	}

	for _, raw := range invalid {
		t.Run("rejects "+raw, func(t *testing.T) {
			assert.ErrorIs(t, shortener.ValidateDestination(shortener.URL(raw)), shortener.ErrValidation)
		})
	}
}

func TestNewCode(t *testing.T) {
	t.Run("accepts alphanumeric codes of 3 to 10 characters", func(t *testing.T) {
		for _, raw := range []string{"abc", "Ab3xY9", "ABCDEFGHIJ"} {
			code, err := shortener.NewCode(raw)

			require.NoError(t, err)
			assert.Equal(t, shortener.Code(raw), code)
		}
	})

	t.Run("rejects bad length or characters", func(t *testing.T) {
		for _, raw := range []string{"", "ab", "ABCDEFGHIJK", "abc-12", "abc 12", "ab/cd"} {
			_, err := shortener.NewCode(raw)

			assert.ErrorIs(t, err, shortener.ErrValidation, raw)
		}
	})

	t.Run("IsValidCode does not trim", func(t *testing.T) {
		assert.True(t, shortener.IsValidCode("Ab3xY9"))
		assert.False(t, shortener.IsValidCode(" Ab3xY9"))
	})
}

func TestCodeFromShortURL(t *testing.T) {
	cases := map[string]string{
		"click.by/Ab3xY9":                 "Ab3xY9",
		"https://click.by/Ab3xY9":         "Ab3xY9",
		"HTTP://CLICK.BY/Ab3xY9?utm=mail": "Ab3xY9",
		"click.by/Ab3xY9/extra":           "Ab3xY9",
		"click.by/Ab3xY9#frag":            "Ab3xY9",
		"Ab3xY9":                          "Ab3xY9",
		"  click.by/Ab3xY9  ":             "Ab3xY9",
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			code, err := shortener.CodeFromShortURL(input, "click.by/")

			require.NoError(t, err)
			assert.Equal(t, shortener.Code(want), code)
		})
	}

	t.Run("rejects a base with no code", func(t *testing.T) {
		_, err := shortener.CodeFromShortURL("click.by/", "click.by/")

		assert.ErrorIs(t, err, shortener.ErrValidation)
	})
}

func TestUserID(t *testing.T) {
	t.Run("short id is the first eight hex characters", func(t *testing.T) {
		id, err := shortener.ParseUserID("3F2504E0-4F89-11D3-9A0C-0305E82C3301")
		require.NoError(t, err)

		assert.Equal(t, "3f2504e0", id.ShortID())
		assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", id.String())
	})

	t.Run("equal values compare equal", func(t *testing.T) {
		a, _ := shortener.ParseUserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")
		b, _ := shortener.ParseUserID("3F2504E0-4F89-11D3-9A0C-0305E82C3301")

		assert.Equal(t, a, b)
		assert.NotEqual(t, a, shortener.NewUserID())
	})

	t.Run("matches short id prefixes case-insensitively", func(t *testing.T) {
		id, _ := shortener.ParseUserID("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

		assert.True(t, id.MatchesShortID("3F2504E0"))
		assert.True(t, id.MatchesShortID("3f2504e0-4f89"))
		assert.False(t, id.MatchesShortID("3f2504e"))
		assert.False(t, id.MatchesShortID("4f2504e0"))
	})

	t.Run("rejects malformed ids", func(t *testing.T) {
		_, err := shortener.ParseUserID("not-a-uuid")

		assert.ErrorIs(t, err, shortener.ErrValidation)
	})

	t.Run("new ids are not zero", func(t *testing.T) {
		assert.False(t, shortener.NewUserID().IsZero())
		assert.True(t, shortener.UserID{}.IsZero())
	})
}
